package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/lumen/pkg/abi"
	"github.com/xplshn/lumen/pkg/cli"
)

func TestApplyWarningName(t *testing.T) {
	tests := []struct {
		name    string
		check   Warning
		want    bool
		wantErr bool
	}{
		{"no-type", WarnType, false, false},
		{"codegen", WarnCodegen, true, false},
		{"pedantic", WarnPedantic, true, false},
		{"all", WarnCodegen, true, false},
		{"all", WarnPedantic, false, false},
		{"no-all", WarnUnrecognizedEscape, false, false},
		{"bogus", WarnType, true, true},
	}
	for _, tt := range tests {
		c := NewConfig()
		err := c.ApplyWarningName(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ApplyWarningName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if got := c.IsWarningEnabled(tt.check); got != tt.want {
			t.Errorf("after %q, %s enabled = %v, want %v", tt.name, c.Warnings[tt.check].Name, got, tt.want)
		}
	}
}

func TestFlagGroups(t *testing.T) {
	c := NewConfig()
	fs := cli.NewFlagSet("lumc")
	entries := c.SetupFlagGroups(fs)
	if err := fs.Parse([]string{"-Wcodegen", "-Wno-u-esc", "prog.lm"}); err != nil {
		t.Fatal(err)
	}
	c.ApplyFlagGroups(entries)
	if !c.IsWarningEnabled(WarnCodegen) || c.IsWarningEnabled(WarnUnrecognizedEscape) || !c.IsWarningEnabled(WarnType) {
		t.Errorf("warnings after flags: codegen=%v u-esc=%v type=%v",
			c.IsWarningEnabled(WarnCodegen), c.IsWarningEnabled(WarnUnrecognizedEscape), c.IsWarningEnabled(WarnType))
	}
	if diff := cmp.Diff([]string{"prog.lm"}, fs.Args()); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestSetTarget(t *testing.T) {
	tests := []struct {
		goos, goarch, name string
		want               abi.Platform
		wantErr            bool
	}{
		{"linux", "amd64", "", abi.SysV, false},
		{"windows", "amd64", "", abi.Win64, false},
		{"linux", "amd64", "win64", abi.Win64, false},
		{"linux", "arm64", "", abi.SysV, true},
		{"linux", "arm64", "sysv", abi.SysV, false},
		{"linux", "amd64", "mips", abi.SysV, true},
	}
	for _, tt := range tests {
		c := NewConfig()
		err := c.SetTarget(tt.goos, tt.goarch, tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("SetTarget(%s, %s, %q) error = %v, wantErr %v", tt.goos, tt.goarch, tt.name, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && c.Platform != tt.want {
			t.Errorf("SetTarget(%s, %s, %q) chose %s, want %s", tt.goos, tt.goarch, tt.name, c.Platform, tt.want)
		}
	}
}

func TestProjectFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lumen.yaml")
	data := `target: win64
seed: 7
output: app
runtime:
  - runtime/lumen_rt.o
linker_args: ["-lm"]
warnings:
  codegen: true
  type: false
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	pf, err := LoadProjectFile(path)
	if err != nil {
		t.Fatal(err)
	}

	c := NewConfig()
	c.LinkerArgs = []string{"-g"}
	target, err := pf.Apply(c)
	if err != nil {
		t.Fatal(err)
	}
	if target != "win64" || c.Seed != 7 || c.OutputName != "app" {
		t.Errorf("target=%q seed=%d output=%q", target, c.Seed, c.OutputName)
	}
	if diff := cmp.Diff([]string{"runtime/lumen_rt.o"}, c.RuntimeLibs); diff != "" {
		t.Errorf("runtime mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"-g", "-lm"}, c.LinkerArgs); diff != "" {
		t.Errorf("linker args mismatch (-want +got):\n%s", diff)
	}
	if !c.IsWarningEnabled(WarnCodegen) || c.IsWarningEnabled(WarnType) {
		t.Error("project warnings were not applied")
	}
}

func TestProjectFileErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadProjectFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("loading a missing file succeeded")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("seed: [1, 2\n"), 0644)
	if _, err := LoadProjectFile(bad); err == nil {
		t.Error("loading malformed yaml succeeded")
	}

	pf := &ProjectFile{Warnings: map[string]bool{"nonsense": true}}
	if _, err := pf.Apply(NewConfig()); err == nil {
		t.Error("an unknown warning name was accepted")
	}

	c := NewConfig()
	if _, err := (&ProjectFile{}).Apply(c); err != nil || c.Seed != -1 {
		t.Errorf("empty project file changed the seed to %d (err %v)", c.Seed, err)
	}
}
