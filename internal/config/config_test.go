package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"checkline/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Defaults.Priority != "medium" || cfg.Defaults.Category != "general" {
		t.Fatalf("unexpected defaults: %+v", cfg.Defaults)
	}
	if !cfg.KnownCategory("safety") || cfg.KnownCategory("bogus") {
		t.Fatal("category catalog wrong")
	}
}

func TestKnownCategoryEmptyCatalog(t *testing.T) {
	var cfg config.Config
	if !cfg.KnownCategory("anything") {
		t.Fatal("empty catalog must accept anything")
	}
}

func TestFromYAMLValidation(t *testing.T) {
	_, err := config.FromYAML([]byte("service:\n  name: checkline\ndefaults:\n  priority: urgent\n  category: general\n"))
	if err == nil || !strings.Contains(err.Error(), "priority") {
		t.Fatalf("expected priority error, got %v", err)
	}

	_, err = config.FromYAML([]byte("service:\n  name: checkline\ndefaults:\n  priority: low\n  category: ghost\ncategories:\n  general:\n    description: x\n"))
	if err == nil || !strings.Contains(err.Error(), "catalog") {
		t.Fatalf("expected catalog error, got %v", err)
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.LoadOptional(dir)
	if err != nil || cfg != nil {
		t.Fatalf("missing file should yield nil,nil; got %v,%v", cfg, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "checkline.yml"), []byte(config.GenerateDefault()), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = config.LoadOptional(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Service.Name != "checkline" {
		t.Fatalf("service name = %q", cfg.Service.Name)
	}
}
