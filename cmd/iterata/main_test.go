package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/iterata/iterata/internal/config"
)

// newTestRootCmd creates a root command with persistent flags for testing subcommands
func newTestRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use: "iterata",
	}
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", config.DefaultConfigFile, "Config file")
	return rootCmd
}

func TestNewVersionCmd(t *testing.T) {
	cmd := newVersionCmd()
	if cmd.Use != "version" {
		t.Errorf("Use = %q, want %q", cmd.Use, "version")
	}
}

func TestNewLogCmd(t *testing.T) {
	cmd := newLogCmd()
	if cmd.Use != "log" {
		t.Errorf("Use = %q, want %q", cmd.Use, "log")
	}

	for _, flag := range []string{"original", "corrected", "document", "field", "corrector", "confidence", "explain"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("missing --%s flag", flag)
		}
	}
}

func TestNewExportCmd(t *testing.T) {
	cmd := newExportCmd()
	if cmd.Flags().Lookup("format") == nil {
		t.Error("missing --format flag")
	}
}

func TestInitCmdCreatesLayout(t *testing.T) {
	tmpDir := t.TempDir()
	basePath := filepath.Join(tmpDir, "corrections")

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newInitCmd())
	rootCmd.SetArgs([]string{"init", "--path", basePath})
	rootCmd.SetOut(&bytes.Buffer{})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	for _, dir := range []string{"inbox", "explained", "patterns", "rules", "meta"} {
		if _, err := os.Stat(filepath.Join(basePath, dir)); os.IsNotExist(err) {
			t.Errorf("%s/ not created", dir)
		}
	}
	if _, err := os.Stat(filepath.Join(basePath, "iterata.yaml")); os.IsNotExist(err) {
		t.Error("iterata.yaml not created")
	}
}

func TestLogThenListRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	basePath := filepath.Join(tmpDir, "corrections")

	// init writes the config the later commands load.
	initRoot := newTestRootCmd()
	initRoot.AddCommand(newInitCmd())
	initRoot.SetArgs([]string{"init", "--path", basePath})
	initRoot.SetOut(&bytes.Buffer{})
	if err := initRoot.Execute(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	configFile := filepath.Join(basePath, "iterata.yaml")

	logRoot := newTestRootCmd()
	logRoot.AddCommand(newLogCmd())
	logRoot.SetArgs([]string{
		"log",
		"--config", configFile,
		"--original", "1234,56",
		"--corrected", "1234.56",
		"--document", "invoice_001.pdf",
		"--field", "invoice.total_amount",
	})
	logRoot.SetOut(&bytes.Buffer{})
	if err := logRoot.Execute(); err != nil {
		t.Fatalf("log failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(basePath, "inbox"))
	if err != nil {
		t.Fatalf("reading inbox: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("inbox entries = %d, want 1", len(entries))
	}
}
