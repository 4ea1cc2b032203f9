// Package delta reconstructs new file versions from a backed-up original and
// a binary patch artifact. The diff algorithm itself lives behind Service.
package delta

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/logging"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/progress"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/workerpool"
)

var log = logging.L("delta")

// PatchSuffix names the patch artifact that sits alongside a patch target's
// live path.
const PatchSuffix = ".octodiff"

// Missing original or patch artifact indicates a corrupted or mismatched
// backup/patch pair; both abort the whole install.
var (
	ErrMissingOriginal = errors.New("patch original missing from backup folder")
	ErrMissingPatch    = errors.New("patch artifact missing")
)

// Service applies a binary delta. Implementations verify the patch's internal
// checksums; verification is never skipped. report receives the number of
// patch bytes consumed so far out of total.
type Service interface {
	Apply(ctx context.Context, original io.ReadSeeker, patch io.Reader, out io.Writer, report func(consumed, total int64)) error
}

// Applier applies delta patches for a fix's patch targets.
type Applier struct {
	service Service
	pool    *workerpool.Pool
}

func NewApplier(service Service, pool *workerpool.Pool) *Applier {
	return &Applier{service: service, pool: pool}
}

// ApplyAll reconstructs each file in filesToPatch. The original must already
// sit at backupDir/file (placed there with delete-semantics) and the patch
// artifact at installDir/file + PatchSuffix; the new version is written to
// the live path. Files are patched sequentially so progress stays coherent;
// each transform runs on a pool worker with the caller joining on completion.
func (a *Applier) ApplyAll(ctx context.Context, filesToPatch []string, installDir, backupDir string, tracker *progress.Tracker) error {
	if tracker == nil {
		tracker = progress.NewTracker(nil)
	}

	for _, rel := range filesToPatch {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.applyOne(ctx, rel, installDir, backupDir, tracker); err != nil {
			return fmt.Errorf("patch %s: %w", rel, err)
		}
		log.Info("patched", "file", rel)
	}
	return nil
}

func (a *Applier) applyOne(ctx context.Context, rel, installDir, backupDir string, tracker *progress.Tracker) error {
	originalPath := filepath.Join(backupDir, filepath.FromSlash(rel))
	patchPath := filepath.Join(installDir, filepath.FromSlash(rel)+PatchSuffix)
	targetPath := filepath.Join(installDir, filepath.FromSlash(rel))

	original, err := os.Open(originalPath)
	if os.IsNotExist(err) {
		return ErrMissingOriginal
	}
	if err != nil {
		return err
	}
	defer original.Close()

	patch, err := os.Open(patchPath)
	if os.IsNotExist(err) {
		return ErrMissingPatch
	}
	if err != nil {
		return err
	}
	defer patch.Close()

	out, err := os.Create(targetPath)
	if err != nil {
		return err
	}

	tracker.BeginPhase(progress.PhasePatching)
	defer tracker.EndPhase()

	err = a.pool.Do(ctx, func() error {
		return a.service.Apply(ctx, original, patch, out, tracker.Report)
	})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}
