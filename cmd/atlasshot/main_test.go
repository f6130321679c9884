package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/root4loot/atlasshot/pkg/municipio"
)

func TestParseFlags(t *testing.T) {
	cli := NewCLI()
	cli.parseFlags([]string{"-m", "28079", "-e", "chromedp", "-o", "./output", "-nm", "-k", "-dt", "90"})

	if cli.Municipio != "28079" {
		t.Errorf("Expected Municipio to be '28079', got %s", cli.Municipio)
	}

	if cli.Options.Engine != "chromedp" {
		t.Errorf("Expected Engine to be 'chromedp', got %s", cli.Options.Engine)
	}

	if cli.Options.OutputFolder != "./output" {
		t.Errorf("Expected OutputFolder to be './output', got %s", cli.Options.OutputFolder)
	}

	if cli.Options.Mobile {
		t.Error("Expected Mobile to be disabled")
	}

	if !cli.Options.Headless {
		t.Error("Expected Headless to stay enabled")
	}

	if !cli.Options.KeepGoing {
		t.Error("Expected KeepGoing to be enabled")
	}

	if cli.Options.DuplicateThreshold != 90 {
		t.Errorf("Expected DuplicateThreshold to be 90, got %d", cli.Options.DuplicateThreshold)
	}
}

func TestParseFlagsDefaults(t *testing.T) {
	cli := NewCLI()
	cli.parseFlags([]string{"Alcalá/Nueva"})

	if cli.Municipio != "Alcalá/Nueva" {
		t.Errorf("Expected positional municipio, got %q", cli.Municipio)
	}

	if cli.Infile != "data/municipios.json" {
		t.Errorf("Expected default input, got %s", cli.Infile)
	}

	if cli.Options.OutputFolder != "graph" || cli.Options.Engine != "rod" {
		t.Errorf("Unexpected defaults: %+v", cli.Options)
	}

	if !cli.Options.Mobile || !cli.Options.Headless {
		t.Error("Expected mobile headless capture by default")
	}
}

func TestRunUnknownMunicipio(t *testing.T) {
	dir := t.TempDir()
	infile := filepath.Join(dir, "municipios.json")
	if err := os.WriteFile(infile, []byte(`{"municipio": [{"id": "28079", "nombre": "Madrid"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cli := NewCLI()
	cli.parseFlags([]string{"-i", infile, "-o", filepath.Join(dir, "graph"), "-e", "none", "-m", "Atlantis"})

	err := cli.run(context.Background())
	if !errors.Is(err, municipio.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "graph")); !os.IsNotExist(err) {
		t.Errorf("Expected no output folder, got %v", err)
	}
}

func TestRunMissingInput(t *testing.T) {
	cli := NewCLI()
	cli.parseFlags([]string{"-i", filepath.Join(t.TempDir(), "missing.json")})

	if err := cli.run(context.Background()); err == nil {
		t.Error("Expected error for missing input file")
	}
}
