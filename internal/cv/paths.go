package cv

import (
	"os"
	"path/filepath"
	"strings"
)

// SupportedExtensions is the order in which a bare template path is completed.
var SupportedExtensions = []string{".png", ".jpg", ".jpeg"}

// ResolvePath expands a leading ~ and, when path has no supported
// extension, appends the first one for which a file exists.
func ResolvePath(path string) (string, error) {
	expanded := expandHome(path)

	lower := strings.ToLower(expanded)
	for _, ext := range SupportedExtensions {
		if strings.HasSuffix(lower, ext) {
			return expanded, nil
		}
	}

	for _, ext := range SupportedExtensions {
		candidate := expanded + ext
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", &ImageLoadError{Path: path, Err: ErrTemplateNotExist}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
