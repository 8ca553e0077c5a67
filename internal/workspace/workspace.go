package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	ferrors "git.home.luguber.info/inful/buildbot/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbot/internal/logfields"
)

// Manager handles one scratch directory.
type Manager struct {
	baseDir string
	dir     string
	logger  *slog.Logger
}

// NewManager creates a manager rooted at baseDir, or the system temp dir when empty.
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir, logger: slog.Default()}
}

// Create makes a fresh timestamped directory under the base directory.
func (m *Manager) Create() error {
	if err := os.MkdirAll(m.baseDir, 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create workspace base directory").
			WithContext("path", m.baseDir).
			Build()
	}
	prefix := fmt.Sprintf("buildbot-%s-", time.Now().Format("20060102-150405"))
	dir, err := os.MkdirTemp(m.baseDir, prefix)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create workspace directory").
			WithContext("path", m.baseDir).
			Build()
	}
	m.dir = dir
	m.logger.Debug("Created workspace", logfields.Path(dir))
	return nil
}

// Path returns the directory, or "" before Create.
func (m *Manager) Path() string {
	return m.dir
}

// Cleanup removes the directory. It is a no-op before Create.
func (m *Manager) Cleanup() error {
	if m.dir == "" {
		return nil
	}
	if err := os.RemoveAll(m.dir); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "clean up workspace").
			WithContext("path", m.dir).
			Build()
	}
	m.logger.Debug("Cleaned up workspace", logfields.Path(m.dir))
	m.dir = ""
	return nil
}

// CreateSubdir creates a subdirectory within the workspace
func (m *Manager) CreateSubdir(name string) (string, error) {
	if m.dir == "" {
		return "", ferrors.InternalError("workspace not created").Build()
	}
	subdir := filepath.Join(m.dir, name)
	if err := os.MkdirAll(subdir, 0o750); err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "create workspace subdirectory").
			WithContext("path", subdir).
			Build()
	}
	return subdir, nil
}
