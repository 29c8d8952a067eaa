package job

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Workspace is the per-job temporary arena. Every intermediate artifact a
// job creates lives under one directory namespaced by the output file name,
// so concurrent jobs cannot collide on base-clip or edit-list paths and
// cleanup is a single recursive delete.
type Workspace struct {
	dir string
}

// NewWorkspace creates the temp directory for one job under root.
func NewWorkspace(root, trackLabel string) (*Workspace, error) {
	dir := filepath.Join(root, sanitize(trackLabel))
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create job workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// BaseClipPath is where the single one-rotation clip is rendered.
func (w *Workspace) BaseClipPath() string {
	return filepath.Join(w.dir, "base_rotation.mp4")
}

// ConcatListPath is where the concat strategy writes its edit list.
func (w *Workspace) ConcatListPath() string {
	return filepath.Join(w.dir, "concat_list.txt")
}

// Cleanup removes the workspace and everything in it.
func (w *Workspace) Cleanup() error {
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("remove job workspace: %w", err)
	}
	return nil
}

// sanitize strips path separators from a label so it is safe as a single
// directory name.
func sanitize(label string) string {
	label = strings.ReplaceAll(label, string(os.PathSeparator), "_")
	if label == "" || label == "." || label == ".." {
		label = "job"
	}
	return label
}
