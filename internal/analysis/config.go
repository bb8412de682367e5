package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	defaultScratchDir = "editorial-analysis"
	// prepareBudget is the default share of a run left for downloads, archiving and upload.
	prepareBudget = 5 * time.Minute
)

type ToolConfig struct {
	Binary      string        `default:"jplag" desc:"Analysis tool executable"`
	BaseArgs    []string      `split_words:"true" desc:"Arguments placed before the generated ones"`
	Mode        string        `default:"run"`
	Threads     int           `desc:"Concurrency hint passed to the tool, defaults to the CPU count"`
	Language    string        `default:"text" desc:"Language profile used when the caller names none"`
	Timeout     time.Duration `default:"10m" desc:"Limit on the tool process alone"`
	Deadline    time.Duration `desc:"Budget of a whole run including downloads and upload, defaults to the tool timeout plus 5m. Also sizes the run lock"`
	ScratchRoot string        `split_words:"true" desc:"Parent of per-run scratch directories, defaults to editorial-analysis in the OS temp dir"`
	OutputDirs  []string      `split_words:"true" default:"results,result,output,out,report"`
	SummaryFile string        `split_words:"true" default:"results.csv"`
	MaxRows     int           `split_words:"true" default:"50"`
	URLTTL      time.Duration `envconfig:"URL_TTL" default:"168h" desc:"Lifetime of the signed report url"`
	// ProfilesFile optionally points at a YAML file of language profiles.
	ProfilesFile string `split_words:"true"`
}

// LoadToolConfig reads ANALYSIS_* variables.
func LoadToolConfig() (ToolConfig, error) {
	var cfg ToolConfig
	if err := envconfig.Process("analysis", &cfg); err != nil {
		return ToolConfig{}, fmt.Errorf("analysis config: %w", err)
	}
	return cfg.withDefaults(), nil
}

func (c ToolConfig) withDefaults() ToolConfig {
	if c.Binary == "" {
		c.Binary = "jplag"
	}
	if c.Mode == "" {
		c.Mode = "run"
	}
	if c.Threads <= 0 {
		c.Threads = runtime.NumCPU()
	}
	if c.Language == "" {
		c.Language = "text"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Minute
	}
	if c.Deadline <= 0 {
		c.Deadline = c.Timeout + prepareBudget
	}
	if c.ScratchRoot == "" {
		c.ScratchRoot = filepath.Join(os.TempDir(), defaultScratchDir)
	}
	if len(c.OutputDirs) == 0 {
		c.OutputDirs = []string{"results", "result", "output", "out", "report"}
	}
	if c.SummaryFile == "" {
		c.SummaryFile = "results.csv"
	}
	if c.MaxRows <= 0 {
		c.MaxRows = 50
	}
	if c.URLTTL <= 0 {
		c.URLTTL = 7 * 24 * time.Hour
	}
	return c
}
