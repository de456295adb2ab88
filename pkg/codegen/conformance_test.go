package codegen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xplshn/lumen/pkg/abi"
	"github.com/xplshn/lumen/pkg/config"
	"gopkg.in/yaml.v3"
)

// fixture is one case of a testdata/*.yaml file: a program and substrings its
// NASM output must or must not contain.
type fixture struct {
	Name     string   `yaml:"name"`
	Target   string   `yaml:"target"`
	Seed     *int64   `yaml:"seed"`
	Source   string   `yaml:"source"`
	Contains []string `yaml:"contains"`
	Absent   []string `yaml:"absent"`
	Pool     []string `yaml:"pool"`
}

type fixtureFile struct {
	Cases []fixture `yaml:"cases"`
}

func loadFixtures(t *testing.T) map[string][]fixture {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatal("no fixtures under testdata")
	}
	out := make(map[string][]fixture)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		var ff fixtureFile
		if err := yaml.Unmarshal(data, &ff); err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		out[strings.TrimSuffix(filepath.Base(path), ".yaml")] = ff.Cases
	}
	return out
}

// redefined lists the labels defined more than once in NASM text.
func redefined(text string) []string {
	seen := make(map[string]bool)
	var dups []string
	for _, line := range strings.Split(text, "\n") {
		if line == "" || line[0] == ' ' || line[0] == ';' {
			continue
		}
		name, _, ok := strings.Cut(line, ":")
		if !ok || strings.ContainsAny(name, " \t") {
			continue
		}
		if seen[name] {
			dups = append(dups, name)
		}
		seen[name] = true
	}
	return dups
}

func TestConformance(t *testing.T) {
	for file, cases := range loadFixtures(t) {
		for _, fx := range cases {
			fx := fx
			t.Run(file+"/"+fx.Name, func(t *testing.T) {
				cfg := config.NewConfig()
				if fx.Target != "" {
					p, err := abi.ParsePlatform(fx.Target)
					if err != nil {
						t.Fatal(err)
					}
					cfg.Platform = p
				}
				if fx.Seed != nil {
					cfg.Seed = *fx.Seed
				}

				prog := compile(t, fx.Source, cfg)
				text := emitNASM(t, prog, cfg.Platform)
				for _, want := range fx.Contains {
					if !strings.Contains(text, want) {
						t.Errorf("output lacks %q", want)
					}
				}
				for _, bad := range fx.Absent {
					if strings.Contains(text, bad) {
						t.Errorf("output contains %q", bad)
					}
				}
				for _, s := range fx.Pool {
					if _, ok := prog.StringLabel(s); !ok {
						t.Errorf("string pool lacks %q", s)
					}
				}
				if dups := redefined(text); len(dups) > 0 {
					t.Errorf("symbols defined more than once: %v", dups)
				}
				if t.Failed() {
					t.Logf("source:\n%s\noutput:\n%s", fx.Source, text)
				}
			})
		}
	}
}
