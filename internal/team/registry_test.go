package team

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tandem-dev/tandem/internal/errors"
)

func writeManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
}

func TestRegistryLoadAll(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "fastidious.yaml", `
name: fastidious
description: thorough review
coder:
  prompt: "implement carefully: {{.Spec}}"
reviewer:
  prompt: "review line by line: {{.CoderOutput}}"
`)

	reg := NewRegistry(dir, nil)
	teams, err := reg.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}

	if _, ok := teams["default"]; !ok {
		t.Error("expected built-in default team to survive loading")
	}

	tm, ok := teams["fastidious"]
	if !ok {
		t.Fatal("expected manifest team to be loaded")
	}
	if tm.Description != "thorough review" {
		t.Errorf("Description = %q, want %q", tm.Description, "thorough review")
	}
	if tm.Source == BuiltinSource {
		t.Errorf("Source = %q, want manifest path", tm.Source)
	}
}

func TestRegistrySkipsInvalidManifests(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "broken.yaml", "name: [unclosed\n")
	writeManifest(t, dir, "noprompts.yaml", "name: noprompts\n")
	writeManifest(t, dir, "good.yaml", `
name: good
coder:
  prompt: "implement {{.Spec}}"
reviewer:
  prompt: "review {{.CoderOutput}}"
`)

	reg := NewRegistry(dir, nil)
	teams, err := reg.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}

	if _, ok := teams["good"]; !ok {
		t.Error("valid manifest should load despite broken siblings")
	}
	if _, ok := teams["noprompts"]; ok {
		t.Error("manifest without prompts should be skipped")
	}
}

func TestRegistryNameFallsBackToFileName(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "speedy.yaml", `
coder:
  prompt: "implement {{.Spec}}"
reviewer:
  prompt: "review {{.CoderOutput}}"
`)

	reg := NewRegistry(dir, nil)
	teams, err := reg.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if _, ok := teams["speedy"]; !ok {
		t.Error("expected team named after its file")
	}
}

func TestRegistryDuplicateNamesKeepFirst(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "a.yaml", `
name: dup
description: first
coder:
  prompt: "a {{.Spec}}"
reviewer:
  prompt: "a {{.CoderOutput}}"
`)
	writeManifest(t, dir, "b.yaml", `
name: dup
description: second
coder:
  prompt: "b {{.Spec}}"
reviewer:
  prompt: "b {{.CoderOutput}}"
`)

	reg := NewRegistry(dir, nil)
	teams, err := reg.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if got := teams["dup"].Description; got != "first" {
		t.Errorf("Description = %q, want %q (first wins)", got, "first")
	}
}

func TestRegistryManifestShadowsBuiltin(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "default.yaml", `
name: default
description: customized
coder:
  prompt: "custom {{.Spec}}"
reviewer:
  prompt: "custom {{.CoderOutput}}"
`)

	reg := NewRegistry(dir, nil)
	teams, err := reg.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if got := teams["default"].Description; got != "customized" {
		t.Errorf("Description = %q, want manifest to shadow built-in", got)
	}
}

func TestRegistryLoadUnknown(t *testing.T) {
	reg := NewRegistry(t.TempDir(), nil)

	_, err := reg.Load("missing")
	if err == nil {
		t.Fatal("expected error for unknown team")
	}
	if !errors.Is(err, errors.ErrTeamNotFound) {
		t.Errorf("error = %v, want ErrTeamNotFound", err)
	}
}

func TestRegistryLoadMissingDir(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "does-not-exist"), nil)

	tm, err := reg.Load("default")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if tm.Source != BuiltinSource {
		t.Errorf("Source = %q, want built-in", tm.Source)
	}
}
