// Package validation checks command line inputs before any work starts.
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputFormats are the formats accepted by --output.
var OutputFormats = []string{"text", "json", "yaml"}

// IsValidOutputFormat checks if the given format is supported.
func IsValidOutputFormat(format string) error {
	for _, f := range OutputFormats {
		if strings.EqualFold(format, f) {
			return nil
		}
	}
	return fmt.Errorf("unsupported output format: %s. Supported formats are %s", format, strings.Join(OutputFormats, ", "))
}

// IsValidExportPath checks that path has the wanted extension and that its
// directory exists. An empty path is valid and means no export.
func IsValidExportPath(path, extension string) error {
	if path == "" {
		return nil
	}
	if !strings.EqualFold(filepath.Ext(path), extension) {
		return fmt.Errorf("export file %s must have the %s extension", path, extension)
	}
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return fmt.Errorf("directory does not exist: %s", dir)
	}
	if err != nil {
		return fmt.Errorf("error checking path %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// IsValidFilePermissions rejects modes giving others any access, for files
// holding tokens or DSNs.
func IsValidFilePermissions(mode os.FileMode) error {
	if mode&0007 != 0 {
		return fmt.Errorf("file permissions are too permissive: %s. Recommended 0600 or 0640", mode.String())
	}
	return nil
}
