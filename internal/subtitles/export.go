package subtitles

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputPath derives the subtitle file location for a source video:
// <stem>.<lang>.<ext> in outputDir, or next to the source when outputDir is
// empty.
func OutputPath(outputDir, sourcePath, targetLanguage string, format Format) string {
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	name := fmt.Sprintf("%s.%s.%s", stem, targetLanguage, format.Extension())
	if strings.TrimSpace(outputDir) == "" {
		return filepath.Join(filepath.Dir(sourcePath), name)
	}
	return filepath.Join(outputDir, name)
}

// WriteFile renders the segments and writes the subtitle file atomically.
func WriteFile(path string, segments []Segment, format Format, opts RenderOptions) error {
	content, err := Render(format, segments, opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write subtitle file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace subtitle file: %w", err)
	}
	return nil
}
