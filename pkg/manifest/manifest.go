// Package manifest reads and validates processor manifests: YAML files that
// describe a processor distribution's name, version, authors, dependency
// constraints, and the algorithms it ships. Release tooling uses the manifest
// as the source of truth for what a distribution contains.
package manifest

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// AlgorithmEntry names one algorithm a distribution ships.
type AlgorithmEntry struct {
	Name          string `yaml:"name"`
	Version       string `yaml:"version"`
	WindowType    string `yaml:"windowType"`
	WindowVersion string `yaml:"windowVersion"`
}

// Manifest describes a processor distribution.
type Manifest struct {
	Name    string   `yaml:"name"`
	Version string   `yaml:"version"`
	Authors []string `yaml:"authors,omitempty"`

	// Dependencies maps dependency names to semver constraint strings,
	// e.g. ">= 1.2.0, < 2.0.0".
	Dependencies map[string]string `yaml:"dependencies,omitempty"`

	Algorithms []AlgorithmEntry `yaml:"algorithms,omitempty"`
}

var nameRE = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// Parse decodes a manifest from r. The decoder is strict: unknown fields are
// an error.
func Parse(r io.Reader) (Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Validate checks the manifest's name, version, dependency constraints, and
// algorithm entries.
func (m Manifest) Validate() error {
	if !nameRE.MatchString(m.Name) {
		return fmt.Errorf("manifest name %q must be lowercase kebab-case", m.Name)
	}
	if _, err := semver.StrictNewVersion(m.Version); err != nil {
		return fmt.Errorf("manifest version %q is not semver: %w", m.Version, err)
	}
	for dep, constraint := range m.Dependencies {
		if _, err := semver.NewConstraint(constraint); err != nil {
			return fmt.Errorf("dependency %s has invalid constraint %q: %w", dep, constraint, err)
		}
	}
	for _, alg := range m.Algorithms {
		if alg.Name == "" {
			return fmt.Errorf("manifest lists an algorithm without a name")
		}
		if _, err := semver.StrictNewVersion(alg.Version); err != nil {
			return fmt.Errorf("algorithm %s has invalid version %q: %w", alg.Name, alg.Version, err)
		}
	}
	return nil
}

// Satisfies reports whether version satisfies the manifest's constraint for
// the named dependency. A dependency absent from the manifest is satisfied by
// any version.
func (m Manifest) Satisfies(dep, version string) (bool, error) {
	constraint, ok := m.Dependencies[dep]
	if !ok {
		return true, nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("dependency %s has invalid constraint %q: %w", dep, constraint, err)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("version %q is not semver: %w", version, err)
	}
	return c.Check(v), nil
}
