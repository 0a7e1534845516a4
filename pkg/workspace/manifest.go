// Package workspace turns a component tree into runnable build, test
// and lint tasks.
//
// A workspace is a repository with a hab.yaml manifest at its root and
// one directory per component under components/. The manifest lists the
// components, marks the library subset, and may override the toolchain
// command run for each verb. Components can refine those commands
// further with a plan.star file.
package workspace

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ManifestName is the file the workspace root is identified by.
const ManifestName = "hab.yaml"

// Verb is one of the actions that can be applied to a component.
type Verb string

const (
	VerbBuild Verb = "build"
	VerbUnit  Verb = "unit"
	VerbLint  Verb = "lint"
	VerbFmt   Verb = "fmt"
	VerbClean Verb = "clean"
)

// Verbs lists all verbs in the order they are presented to users.
var Verbs = []Verb{VerbBuild, VerbUnit, VerbLint, VerbFmt, VerbClean}

// ParseVerb validates a user-supplied verb name.
func ParseVerb(raw string) (Verb, error) {
	for _, verb := range Verbs {
		if string(verb) == raw {
			return verb, nil
		}
	}
	return "", eris.Errorf("%s is not a known action", raw)
}

// Manifest is the parsed hab.yaml.
type Manifest struct {
	Components []string          `yaml:"components"`
	Lib        []string          `yaml:"lib"`
	Toolchain  map[Verb]string   `yaml:"toolchain"`
	Lint       struct {
		Deny  []string `yaml:"deny"`
		Warn  []string `yaml:"warn"`
		Allow []string `yaml:"allow"`
	} `yaml:"lint"`
}

var defaultCommands = map[Verb]string{
	VerbBuild: "cargo build",
	VerbUnit:  "cargo test",
	VerbLint:  "cargo clippy --all-targets --tests",
	VerbFmt:   "cargo fmt",
	VerbClean: "cargo clean",
}

// LoadManifest reads and validates the hab.yaml in root.
func LoadManifest(root string) (*Manifest, error) {
	path := filepath.Join(root, ManifestName)
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", path)
	}

	manifest := new(Manifest)
	err = yaml.Unmarshal(content, manifest)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", path)
	}

	if len(manifest.Components) == 0 {
		return nil, eris.Errorf("%s does not list any components", path)
	}

	known := make(map[string]bool, len(manifest.Components))
	for _, name := range manifest.Components {
		if known[name] {
			return nil, eris.Errorf("%s lists component %s twice", path, name)
		}
		known[name] = true
	}

	for _, name := range manifest.Lib {
		if !known[name] {
			return nil, eris.Errorf("%s marks %s as a lib component but does not list it", path, name)
		}
	}

	if manifest.Toolchain == nil {
		manifest.Toolchain = map[Verb]string{}
	}
	for verb, cmd := range defaultCommands {
		if manifest.Toolchain[verb] == "" {
			manifest.Toolchain[verb] = cmd
		}
	}

	return manifest, nil
}

// ComponentDir returns the directory a component lives in, relative to
// the workspace root.
func ComponentDir(root, name string) string {
	return filepath.Join(root, "components", name)
}

// Command renders the toolchain command for a verb. For lint, the
// manifest's deny, warn and allow lists are appended the way clippy
// expects them.
func (m *Manifest) Command(verb Verb) string {
	cmd := m.Toolchain[verb]
	if verb != VerbLint {
		return cmd
	}

	parts := []string{cmd}
	if !strings.Contains(cmd, " -- ") {
		parts = append(parts, "--")
	}
	for _, lint := range m.Lint.Deny {
		parts = append(parts, "-D", lint)
	}
	for _, lint := range m.Lint.Warn {
		parts = append(parts, "-W", lint)
	}
	for _, lint := range m.Lint.Allow {
		parts = append(parts, "-A", lint)
	}
	return strings.Join(parts, " ")
}

// IsComponent reports whether name is listed in the manifest.
func (m *Manifest) IsComponent(name string) bool {
	for _, known := range m.Components {
		if known == name {
			return true
		}
	}
	return false
}
