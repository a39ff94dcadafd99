package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AldinMesan/ParcelsScript/internal/config"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"migrate", "import", "scrape", "reconcile", "status", "flatten", "export", "logs"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "parcels", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestImportCommand_Flags(t *testing.T) {
	flag := importCmd.Flags().Lookup("csv")
	require.NotNil(t, flag, "import command should have --csv flag")
}

func TestScrapeCommand_Flags(t *testing.T) {
	flag := scrapeCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)

	flag = scrapeCmd.Flags().Lookup("stale-after")
	require.NotNil(t, flag)
	assert.Equal(t, "30m0s", flag.DefValue)

	flag = scrapeCmd.Flags().Lookup("snapshot")
	require.NotNil(t, flag)
	assert.Equal(t, "true", flag.DefValue)
	assert.NotNil(t, scrapeCmd.Flags().Lookup("output"))
}

func TestFlattenCommand_Flags(t *testing.T) {
	for _, name := range []string{"output", "format", "upload"} {
		assert.NotNil(t, flattenCmd.Flags().Lookup(name), "flatten should have --%s flag", name)
	}
	assert.Equal(t, "csv", flattenCmd.Flags().Lookup("format").DefValue)
}

func TestExportAndLogsCommand_Flags(t *testing.T) {
	assert.NotNil(t, exportCmd.Flags().Lookup("output"))
	assert.Contains(t, exportCmd.Flags().Lookup("output").Usage, "parsed_data.csv")
	assert.NotNil(t, exportCmd.Flags().Lookup("upload"))
	assert.Equal(t, "20", logsCmd.Flags().Lookup("limit").DefValue)
	assert.NotNil(t, reconcileCmd.Flags().Lookup("older-than"))
}

func TestOutputPath(t *testing.T) {
	cfg = &config.Config{Report: config.ReportConfig{OutputDir: "Output"}}
	t.Cleanup(func() { cfg = nil })

	assert.Equal(t, "custom.csv", outputPath("custom.csv", "x.csv"))
	assert.Equal(t, filepath.Join("Output", "x.csv"), outputPath("", "x.csv"))
}

func TestWriteFile_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")

	err := writeFile(path, func(w io.Writer) error {
		_, err := w.Write([]byte("a,b\n"))
		return err
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))
}

func TestEndToEnd_ImportStatusFlatten(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	require.NoError(t, os.WriteFile("coords.csv", []byte("lat,lng\n32.1,-97.1\n32.2,-97.2\n"), 0o644))

	run := func(args ...string) string {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(args)
		require.NoError(t, rootCmd.Execute(), "parcels %s", strings.Join(args, " "))
		return out.String()
	}

	run("import", "--csv", "coords.csv")
	status := run("status")
	assert.Contains(t, status, "TODO")
	assert.Regexp(t, `TODO\s+2`, status)
	assert.Regexp(t, `TOTAL\s+2`, status)

	run("flatten", "--output", "report.csv")
	data, err := os.ReadFile("report.csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "id,origin_id,parcel_id"), string(data))
}
