package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileName builds names like "fares_GRU-CDG_20261014-083000_1a2b3c4d.csv".
func FileName(kind, route string, at time.Time, batchID, ext string) string {
	short := batchID
	if len(short) > 8 {
		short = short[:8]
	}
	name := fmt.Sprintf("%s_%s_%s_%s.%s", kind, route, at.Format("20060102-150405"), short, ext)
	return sanitizeFilename(name)
}

// WriteFile creates outputDir/name and fills it with write. The partial file
// is removed if write fails.
func WriteFile(outputDir, name string, write func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_", " ", "_", ",", "-")
	return replacer.Replace(s)
}
