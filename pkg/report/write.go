package report

import (
	"os"
	"path/filepath"

	"github.com/agentstation/procreport/pkg/constants"
	"github.com/agentstation/procreport/pkg/errors"
)

// WriteReport writes content to dir/name, replacing any existing file. The
// content goes to a temporary file first and is renamed into place, so a
// failed write leaves no partial report behind.
func WriteReport(dir, name, content string) (string, error) {
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return "", errors.WrapIO("create", dir, err)
	}

	path := filepath.Join(dir, name)

	tempFile, err := os.CreateTemp(dir, ".procreport-*.md")
	if err != nil {
		return "", errors.WrapIO("create", "temp file", err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFile.WriteString(content); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
		return "", errors.WrapIO("write", path, err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempPath)
		return "", errors.WrapIO("write", path, err)
	}
	if err := os.Chmod(tempPath, constants.FilePermissions); err != nil {
		_ = os.Remove(tempPath)
		return "", errors.WrapIO("chmod", path, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return "", errors.WrapIO("move", path, err)
	}
	return path, nil
}
