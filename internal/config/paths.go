package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".roamline"

// Paths holds resolved filesystem paths for Roamline data.
type Paths struct {
	Base     string // ~/.roamline
	Config   string // ~/.roamline/config.yaml
	Sessions string // ~/.roamline/sessions
	Logs     string // ~/.roamline/logs
}

// ResolvePaths computes all standard paths from the home directory.
// If ROAMLINE_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("ROAMLINE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:     base,
		Config:   filepath.Join(base, "config.yaml"),
		Sessions: filepath.Join(base, "sessions"),
		Logs:     filepath.Join(base, "logs"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Sessions, p.Logs} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}
