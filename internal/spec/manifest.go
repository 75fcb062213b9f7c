// Package spec parses the photon.yaml handler manifest.
package spec

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Valid execution modes.
const (
	ModeOneshot    = "oneshot"
	ModePersistent = "persistent"
)

// Manifest describes the user handler the runtime client supervises.
type Manifest struct {
	// API version for future compatibility
	APIVersion string `yaml:"apiVersion,omitempty"`
	// Kind is always "Handler"
	Kind string `yaml:"kind,omitempty"`

	Name string `yaml:"name"`

	// Command is the handler executable; Args are passed verbatim.
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`

	// WorkDir is the working directory of the handler process. Defaults to
	// the manifest's directory.
	WorkDir string `yaml:"workDir,omitempty"`

	// Env is merged over the inherited environment.
	Env map[string]string `yaml:"env,omitempty"`

	// Mode selects process-per-invocation (oneshot) or a long-lived handler
	// exchanging framed payloads (persistent).
	Mode string `yaml:"mode,omitempty"`

	// Timeout in seconds applied to a single invocation when the control
	// endpoint supplies no deadline. 0 means no local timeout.
	Timeout int `yaml:"timeout,omitempty"`
}

// ParseFile parses a YAML manifest file.
func ParseFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	return Parse(f, filepath.Dir(path))
}

// Parse parses YAML manifest content. baseDir anchors relative paths.
func Parse(r io.Reader, baseDir string) (*Manifest, error) {
	var m Manifest
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest yaml: %w", err)
	}

	if m.Command == "" {
		return nil, fmt.Errorf("manifest: command is required")
	}
	if m.Mode == "" {
		m.Mode = ModeOneshot
	}
	if m.Mode != ModeOneshot && m.Mode != ModePersistent {
		return nil, fmt.Errorf("manifest: unknown mode %q", m.Mode)
	}
	if m.WorkDir == "" {
		m.WorkDir = baseDir
	} else if !filepath.IsAbs(m.WorkDir) {
		m.WorkDir = filepath.Join(baseDir, m.WorkDir)
	}

	return &m, nil
}
