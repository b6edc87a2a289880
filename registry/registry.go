// Package registry persists the resource names of created prediction
// endpoints in a small YAML file so invoke runs can find the endpoint a
// deploy run produced.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var ErrNoEndpoints = errors.New("no endpoints registered")

// Registry is the on-disk endpoints.yml document.
type Registry struct {
	Endpoints []string `yaml:"endpoints"`
}

// Load reads the registry from path. A missing file yields an empty registry
// so a first deploy can append to it.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Registry{}, nil
		}
		return nil, fmt.Errorf("unable to read endpoint registry %s, %w", path, err)
	}

	var r Registry
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("unable to parse endpoint registry %s, %w", path, err)
	}
	return &r, nil
}

// First returns the first registered endpoint resource name.
func (r *Registry) First() (string, error) {
	if len(r.Endpoints) == 0 {
		return "", ErrNoEndpoints
	}
	return r.Endpoints[0], nil
}

// Append records a newly created endpoint resource name.
func (r *Registry) Append(resourceName string) {
	r.Endpoints = append(r.Endpoints, resourceName)
}

// Save writes the registry back to path, creating parent directories as
// needed.
func (r *Registry) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("unable to create registry directory %s, %w", dir, err)
		}
	}

	raw, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("unable to marshal endpoint registry, %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("unable to write endpoint registry %s, %w", path, err)
	}
	return nil
}
