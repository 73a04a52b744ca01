package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ExpandPaths turns the requested relative paths into the flat task list
// for one batch. Inputs that do not exist under root are skipped (the path
// list is a best-effort manifest, not a strict one). Directories are walked
// recursively in lexical order and contribute one task per regular file.
// Any other filesystem error poisons the whole expansion: the caller must
// not start a pool on a partial task list.
func ExpandPaths(fsys afero.Fs, root, prefix string, relPaths []string, log *zap.Logger) ([]*Task, error) {
	tasks := make([]*Task, 0, len(relPaths))

	for _, rel := range relPaths {
		rel = filepath.Clean(rel)
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			log.Debug("skipping path outside root", zap.String("path", rel))
			continue
		}

		abs := filepath.Join(root, rel)
		info, err := fsys.Stat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				log.Debug("skipping missing path", zap.String("path", abs))
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", abs, err)
		}

		if !info.IsDir() {
			if !info.Mode().IsRegular() {
				log.Debug("skipping irregular file", zap.String("path", abs))
				continue
			}
			tasks = append(tasks, newTask(root, rel, prefix, info.Size()))
			continue
		}

		err = afero.Walk(fsys, abs, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() || !fi.Mode().IsRegular() {
				return nil
			}
			relFile, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			tasks = append(tasks, newTask(root, relFile, prefix, fi.Size()))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", abs, err)
		}
	}

	return tasks, nil
}

func newTask(root, rel, prefix string, size int64) *Task {
	return &Task{
		SourcePath: filepath.Join(root, rel),
		RelPath:    filepath.ToSlash(rel),
		Key:        joinKey(prefix, rel),
		Size:       size,
	}
}

// joinKey builds a destination key with forward slashes regardless of the
// local path separator.
func joinKey(prefix, rel string) string {
	rel = filepath.ToSlash(rel)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return rel
	}
	return prefix + "/" + rel
}

// combinePrefix joins the configured global prefix with a per-batch one.
func combinePrefix(global, local string) string {
	global = strings.Trim(global, "/")
	local = strings.Trim(local, "/")
	switch {
	case global == "":
		return local
	case local == "":
		return global
	default:
		return global + "/" + local
	}
}
