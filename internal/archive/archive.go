// Package archive abstracts the archive format the installer unpacks.
package archive

import "context"

// Service lists and unpacks fix archives. The installer treats the archive
// format as opaque behind this interface.
type Service interface {
	// ListFiles returns the archive's member paths, relative to destDir,
	// filtered to subfolder and variant. Directory entries are excluded.
	ListFiles(archivePath, destDir, subfolder, variant string) ([]string, error)

	// Unpack extracts the archive (restricted to variant, if any) into
	// destDir.
	Unpack(ctx context.Context, archivePath, destDir, variant string) error
}
