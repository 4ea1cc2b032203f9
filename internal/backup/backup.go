// Package backup snapshots files into a per-fix backup folder before the
// installer deletes or overwrites them. It is the only place the live install
// tree is mutated ahead of new content, which makes it the safety boundary
// rollback tooling depends on.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/logging"
)

var log = logging.L("backup")

// Manager manages per-fix backup folders under installDir/<Root>.
type Manager struct {
	// Root is the backup root folder name inside the install directory.
	Root string
}

func NewManager(root string) *Manager {
	if root == "" {
		root = ".superheater"
	}
	return &Manager{Root: root}
}

// FolderFor returns the deterministic backup folder path for a fix name.
func (m *Manager) FolderFor(installDir, fixName string) string {
	return filepath.Join(installDir, m.Root, Sanitize(fixName))
}

// PrepareFolder yields a clean, empty backup folder for the fix. Any
// pre-existing folder for the same fix name is deleted first, so the folder's
// contents always correspond to the most recent install attempt only.
func (m *Manager) PrepareFolder(installDir, fixName string) (string, error) {
	dir := m.FolderFor(installDir, fixName)

	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clear backup folder: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create backup folder: %w", err)
	}
	return dir, nil
}

// Backup mirrors the given relative paths from installDir into backupDir,
// in descriptor order, sequentially. Missing sources are skipped silently:
// fixes may legitimately reference files not present on every install.
// With deleteOriginal the file is moved rather than copied.
func (m *Manager) Backup(files []string, installDir, backupDir string, deleteOriginal bool) error {
	for _, rel := range files {
		src := filepath.Join(installDir, filepath.FromSlash(rel))
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		} else if err != nil {
			return fmt.Errorf("stat %s: %w", rel, err)
		}

		dst := filepath.Join(backupDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return fmt.Errorf("mirror directory for %s: %w", rel, err)
		}

		if deleteOriginal {
			if err := moveFile(src, dst); err != nil {
				return fmt.Errorf("move %s: %w", rel, err)
			}
		} else {
			if err := copyFile(src, dst); err != nil {
				return fmt.Errorf("copy %s: %w", rel, err)
			}
		}
		log.Debug("backed up", "file", rel, "moved", deleteOriginal)
	}
	return nil
}

// Restore copies the backup tree back over the install tree. Originals that
// were moved into the backup reappear at their live paths.
func (m *Manager) Restore(installDir, backupDir string) error {
	return filepath.Walk(backupDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(backupDir, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(installDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		return copyFile(path, dst)
	})
}

// ListStale returns backup folder names under installDir that are not named
// by any entry in keep. These are leftovers of fixes no longer installed.
func (m *Manager) ListStale(installDir string, keep []string) ([]string, error) {
	root := filepath.Join(installDir, m.Root)
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	kept := make(map[string]bool, len(keep))
	for _, name := range keep {
		kept[Sanitize(name)] = true
	}

	var stale []string
	for _, e := range entries {
		if e.IsDir() && !kept[e.Name()] {
			stale = append(stale, e.Name())
		}
	}
	return stale, nil
}

// ClearStale removes stale backup folders identified by ListStale.
func (m *Manager) ClearStale(installDir string, keep []string) error {
	stale, err := m.ListStale(installDir, keep)
	if err != nil {
		return err
	}
	root := filepath.Join(installDir, m.Root)
	for _, name := range stale {
		if err := os.RemoveAll(filepath.Join(root, name)); err != nil {
			return fmt.Errorf("remove stale backup %s: %w", name, err)
		}
		log.Info("removed stale backup", "folder", name)
	}
	return nil
}

// Sanitize strips characters that are invalid in a path component.
func Sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, name)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// moveFile renames src to dst, falling back to copy+remove across devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}
