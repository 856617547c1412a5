// Package assets persists binary payloads (decoded images, downloaded
// meshes) to addressable storage and hands back stable paths.
package assets

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/roboforge/types"
)

// Materializer turns bytes plus a logical name into a stable path.
type Materializer interface {
	Write(name string, data []byte) (string, error)
}

// Dir materializes assets as files under a base directory.
type Dir struct {
	base   string
	logger *zap.Logger
}

// NewDir creates the base directory if needed and returns a Dir.
func NewDir(base string, logger *zap.Logger) (*Dir, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, types.Errorf(types.ErrInternal, "resolve asset dir %s", base).WithCause(err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, types.Errorf(types.ErrInternal, "create asset dir %s", abs).WithCause(err)
	}
	return &Dir{
		base:   abs,
		logger: logger.With(zap.String("component", "assets")),
	}, nil
}

// Base returns the absolute base directory.
func (d *Dir) Base() string { return d.base }

// Write stores data under the logical name and returns the absolute path.
// Names are flat: path separators are rejected to keep every asset inside
// the base directory.
func (d *Dir) Write(name string, data []byte) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", types.Errorf(types.ErrInternal, "invalid asset name %q", name)
	}

	path := filepath.Join(d.base, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", types.Errorf(types.ErrInternal, "write asset %s", name).WithCause(err)
	}

	d.logger.Debug("asset written", zap.String("path", path), zap.Int("bytes", len(data)))
	return path, nil
}
