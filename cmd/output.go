package main

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/AldinMesan/ParcelsScript/internal/storage"
)

// writeFile creates path (and its directory) and streams write into it.
func writeFile(path string, write func(w io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "create output dir %s", dir)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

// uploadFile pushes a written report to object storage.
func uploadFile(ctx context.Context, path string) (string, error) {
	if err := cfg.Validate("upload"); err != nil {
		return "", err
	}
	up, err := storage.NewS3Uploader(cfg.Storage)
	if err != nil {
		return "", err
	}
	return up.Upload(ctx, path)
}

// outputPath returns flagValue, or name inside the configured output dir.
func outputPath(flagValue, name string) string {
	if flagValue != "" {
		return flagValue
	}
	return filepath.Join(cfg.Report.OutputDir, name)
}
