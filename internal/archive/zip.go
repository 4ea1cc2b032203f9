package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/logging"
)

var log = logging.L("archive")

// ZipService implements Service for zip archives. A variant is a top-level
// folder inside the archive; selecting one restricts extraction to that
// folder and strips its prefix from the extracted paths.
type ZipService struct{}

func NewZipService() *ZipService {
	return &ZipService{}
}

// ListFiles returns the member paths the archive would place under destDir,
// relative to destDir's parent install directory via subfolder. Paths use
// forward slashes and follow archive order.
func (s *ZipService) ListFiles(archivePath, destDir, subfolder, variant string) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", filepath.Base(archivePath), err)
	}
	defer r.Close()

	var files []string
	for _, f := range r.File {
		name, ok := memberName(f.Name, variant)
		if !ok || strings.HasSuffix(name, "/") {
			continue
		}
		// The listing feeds the backup phase, which moves files around, so
		// escaping members must be rejected here and not just at unpack time.
		if _, err := securePath(destDir, name); err != nil {
			return nil, err
		}
		if subfolder != "" {
			name = path.Join(subfolder, name)
		}
		files = append(files, name)
	}
	return files, nil
}

// Unpack extracts the archive into destDir.
func (s *ZipService) Unpack(ctx context.Context, archivePath, destDir, variant string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", filepath.Base(archivePath), err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		name, ok := memberName(f.Name, variant)
		if !ok || name == "" {
			continue
		}

		target, err := securePath(destDir, name)
		if err != nil {
			return err
		}

		if strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("extract %s: %w", name, err)
		}
	}

	log.Debug("archive unpacked", "archive", filepath.Base(archivePath), "dest", destDir)
	return nil
}

// memberName applies variant filtering: with a variant set, only members
// under "<variant>/" are kept, with the prefix stripped.
func memberName(name, variant string) (string, bool) {
	if variant == "" {
		return name, true
	}
	prefix := variant + "/"
	if !strings.HasPrefix(name, prefix) {
		return "", false
	}
	return strings.TrimPrefix(name, prefix), true
}

// securePath joins name onto dir, rejecting members that escape it.
func securePath(dir, name string) (string, error) {
	target := filepath.Join(dir, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive member escapes destination: %s", name)
	}
	return target, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	in, err := f.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
