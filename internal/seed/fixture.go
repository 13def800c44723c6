package seed

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Fixture describes demo societies in YAML. Anyone not listed is
// generated by the factory.
type Fixture struct {
	Societies []SocietyFixture `yaml:"societies"`
}

// SocietyFixture is one tenant and its staff.
type SocietyFixture struct {
	Name            string          `yaml:"name"`
	Admins          []PersonFixture `yaml:"admins"`
	Guards          []PersonFixture `yaml:"guards"`
	Residents       []PersonFixture `yaml:"residents"`
	Businesses      []PersonFixture `yaml:"businesses"`
	VisitorsPerFlat int             `yaml:"visitors_per_flat"`
}

// PersonFixture is a user row. Flat is required for residents only.
type PersonFixture struct {
	Name  string `yaml:"name"`
	Phone string `yaml:"phone"`
	Email string `yaml:"email"`
	Flat  string `yaml:"flat"`
}

// LoadFixture reads and validates a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(raw)
}

// ParseFixture decodes a YAML fixture and validates it.
func ParseFixture(raw []byte) (*Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := fx.Validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

// Validate checks that society names are present and unique and that every
// resident has a flat.
func (fx *Fixture) Validate() error {
	if len(fx.Societies) == 0 {
		return errors.New("fixture has no societies")
	}
	seen := make(map[string]bool, len(fx.Societies))
	for i, s := range fx.Societies {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return fmt.Errorf("society %d has no name", i)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return fmt.Errorf("society %q listed twice", name)
		}
		seen[key] = true

		for _, r := range s.Residents {
			if strings.TrimSpace(r.Flat) == "" {
				return fmt.Errorf("resident %q in %q has no flat", r.Name, name)
			}
		}
		if s.VisitorsPerFlat < 0 {
			return fmt.Errorf("society %q: visitors_per_flat must not be negative", name)
		}
	}
	return nil
}

// Flats returns the distinct flats residents live in, in fixture order.
func (s SocietyFixture) Flats() []string {
	var flats []string
	seen := map[string]bool{}
	for _, r := range s.Residents {
		flat := strings.TrimSpace(r.Flat)
		if !seen[flat] {
			seen[flat] = true
			flats = append(flats, flat)
		}
	}
	return flats
}
