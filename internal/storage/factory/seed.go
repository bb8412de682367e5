package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/DjordjeVuckovic/editorial-hub/internal/storage"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Seed is the YAML document listing the users and categories the service trusts.
type Seed struct {
	Users      []SeedUser     `yaml:"users"`
	Categories []SeedCategory `yaml:"categories"`
}

type SeedUser struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Email  string `yaml:"email"`
	Role   string `yaml:"role"`
	Active *bool  `yaml:"active"`
}

type SeedCategory struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Active *bool  `yaml:"active"`
}

func LoadSeed(r io.Reader) (*Seed, error) {
	var s Seed
	if err := yaml.NewDecoder(r).Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode seed: %w", err)
	}
	return &s, nil
}

func LoadSeedFile(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return LoadSeed(f)
}

func activeOrDefault(b *bool) bool {
	return b == nil || *b
}

func (s *Seed) users() ([]domain.User, error) {
	out := make([]domain.User, 0, len(s.Users))
	for i, u := range s.Users {
		id, err := uuid.Parse(u.ID)
		if err != nil {
			return nil, fmt.Errorf("seed user %d: invalid id %q: %w", i, u.ID, err)
		}
		role, err := domain.ParseRole(u.Role)
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", id, err)
		}
		out = append(out, domain.User{ID: id, Name: u.Name, Email: u.Email, Role: role, Active: activeOrDefault(u.Active)})
	}
	return out, nil
}

func (s *Seed) categories() ([]domain.Category, error) {
	out := make([]domain.Category, 0, len(s.Categories))
	for i, c := range s.Categories {
		id, err := uuid.Parse(c.ID)
		if err != nil {
			return nil, fmt.Errorf("seed category %d: invalid id %q: %w", i, c.ID, err)
		}
		out = append(out, domain.Category{ID: id, Name: c.Name, Active: activeOrDefault(c.Active)})
	}
	return out, nil
}

// Apply validates every record before writing any of them.
func (s *Seed) Apply(ctx context.Context, dst storage.Seeder) error {
	users, err := s.users()
	if err != nil {
		return err
	}
	categories, err := s.categories()
	if err != nil {
		return err
	}
	for _, u := range users {
		if err := dst.SeedUser(ctx, u); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", u.ID, err)
		}
	}
	for _, c := range categories {
		if err := dst.SeedCategory(ctx, c); err != nil {
			return fmt.Errorf("failed to seed category %s: %w", c.ID, err)
		}
	}
	return nil
}
