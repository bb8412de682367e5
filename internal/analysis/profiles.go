package analysis

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/DjordjeVuckovic/editorial-hub/internal/apperr"
	"gopkg.in/yaml.v3"
)

// Profile is what a caller-facing language name expands to on the command line.
type Profile struct {
	Language string   `yaml:"language"`
	Args     []string `yaml:"args"`
}

// Profiles maps caller-facing language names to tool profiles. An empty set
// passes any well-formed name straight through.
type Profiles map[string]Profile

type profilesFile struct {
	Profiles Profiles `yaml:"profiles"`
}

var languageName = regexp.MustCompile(`^[a-z0-9][a-z0-9_+.-]*$`)

func LoadProfiles(r io.Reader) (Profiles, error) {
	var f profilesFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if err == io.EOF {
			return Profiles{}, nil
		}
		return nil, fmt.Errorf("failed to decode profiles: %w", err)
	}
	out := make(Profiles, len(f.Profiles))
	for name, p := range f.Profiles {
		key := strings.ToLower(strings.TrimSpace(name))
		if !languageName.MatchString(key) {
			return nil, fmt.Errorf("invalid profile name %q", name)
		}
		if p.Language == "" {
			p.Language = key
		}
		out[key] = p
	}
	return out, nil
}

func LoadProfilesFile(path string) (Profiles, error) {
	if path == "" {
		return Profiles{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open profiles file: %w", err)
	}
	defer f.Close()
	return LoadProfiles(f)
}

// Resolve picks the profile for name, using fallback when name is empty.
func (p Profiles) Resolve(name, fallback string) (Profile, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = fallback
	}
	if prof, ok := p[key]; ok {
		return prof, nil
	}
	if len(p) > 0 {
		return Profile{}, apperr.NewValidation(fmt.Sprintf("unknown language profile %q", key))
	}
	if !languageName.MatchString(key) {
		return Profile{}, apperr.NewValidation(fmt.Sprintf("invalid language %q", key))
	}
	return Profile{Language: key}, nil
}
