// Package installer turns a fix descriptor into a reversible, verified
// on-disk change.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/archive"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/backup"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/config"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/delta"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/download"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/executor"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/fix"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/logging"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/overrides"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/progress"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/workerpool"
)

var log = logging.L("installer")

// Installer composes the downloader, the backup manager, the archive service,
// the delta applier and the override editor into one install operation.
//
// Installs of different fixes may run concurrently; installs of the same fix
// against the same install directory must be serialized by the caller, since
// the backup-folder-clear step would race.
type Installer struct {
	cfg        *config.Config
	downloader *download.Downloader
	backups    *backup.Manager
	archives   archive.Service
	patcher    *delta.Applier
	regEdit    *overrides.Manager
	launcher   *executor.Launcher
}

// New wires an Installer from configuration and the two external
// collaborators: the archive service and the delta-apply service.
func New(cfg *config.Config, archives archive.Service, deltaSvc delta.Service, pool *workerpool.Pool) *Installer {
	return &Installer{
		cfg: cfg,
		downloader: download.New(download.Options{
			Timeout:           time.Duration(cfg.DownloadTimeoutSeconds) * time.Second,
			TrustedHashHost:   cfg.TrustedHashHost,
			ResumeMaxRetries:  cfg.ResumeMaxRetries,
			ProgressStepBytes: int64(cfg.ProgressStepBytes),
		}),
		backups:  backup.NewManager(cfg.BackupRoot),
		archives: archives,
		patcher:  delta.NewApplier(deltaSvc, pool),
		regEdit:  overrides.NewManager(),
		launcher: executor.NewLauncher(),
	}
}

// Backups exposes the backup manager for stale-backup housekeeping.
func (i *Installer) Backups() *backup.Manager {
	return i.backups
}

// Install applies desc to installDir. On success it returns the record the
// caller persists for later uninstall; on failure the remaining phases are
// skipped and already-backed-up files stay in the backup folder for rollback
// tooling.
func (i *Installer) Install(ctx context.Context, desc *fix.Descriptor, installDir string, cb progress.Callback) (*fix.InstalledRecord, fix.Result) {
	flog := logging.WithFix(log, desc.GUID, desc.DisplayName())
	tracker := progress.NewTracker(cb)

	// Preflight
	if res := i.preflight(desc, installDir); !res.IsSuccess() {
		return nil, res
	}

	// ResolveSharedFix: the dependency installs fully before any mutation of
	// the outer fix's files.
	var nested *fix.InstalledRecord
	if desc.SharedFix != nil {
		shared := *desc.SharedFix
		if desc.SharedFixInstallFolder != "" {
			shared.InstallFolder = desc.SharedFixInstallFolder
		}
		rec, res := i.Install(ctx, &shared, installDir, cb)
		if !res.IsSuccess() {
			return nil, fix.Fail(res.Kind, "shared fix %s: %s", shared.DisplayName(), res.Message)
		}
		nested = rec
	}

	// AcquireArchive
	archivePath, res := i.acquireArchive(ctx, desc, tracker)
	if !res.IsSuccess() {
		return nil, res
	}

	resolvedDir := installDir
	if desc.InstallFolder != "" {
		resolvedDir = filepath.Join(installDir, filepath.FromSlash(desc.InstallFolder))
	}

	// Enumerate archive members before backup so files about to be
	// overwritten are captured first.
	var installedFiles []string
	if archivePath != "" {
		var err error
		installedFiles, err = i.archives.ListFiles(archivePath, resolvedDir, desc.InstallFolder, desc.Variant)
		if err != nil {
			return nil, fix.FromError(err)
		}
	}

	// Backup
	backupDir, backupName, res := i.backupPhase(desc, installDir, installedFiles)
	if !res.IsSuccess() {
		return nil, res
	}

	// Unpack
	if archivePath != "" {
		tracker.BeginPhase(progress.PhaseUnpacking)
		err := i.archives.Unpack(ctx, archivePath, resolvedDir, desc.Variant)
		tracker.EndPhase()
		if err != nil {
			return nil, fix.FromError(err)
		}
		flog.Info("archive unpacked", "files", len(installedFiles), "dir", resolvedDir)
	}

	// Patch
	if len(desc.FilesToPatch) > 0 {
		if err := i.patcher.ApplyAll(ctx, desc.FilesToPatch, installDir, backupDir, tracker); err != nil {
			return nil, fix.FromError(err)
		}
	}

	// ApplyEnvironmentOverrides
	var applied []string
	if len(desc.Overrides) > 0 {
		var err error
		applied, err = i.regEdit.Apply(i.cfg.WinePrefixDir, desc.Overrides)
		if err != nil {
			if errors.Is(err, overrides.ErrRegFileMissing) || errors.Is(err, overrides.ErrNoSection) {
				return nil, fix.Fail(fix.PreconditionError, "%v", err)
			}
			return nil, fix.FromError(err)
		}
	}

	// RunPostInstall
	if desc.PostInstallAction != "" {
		if err := i.launcher.RunPostInstall(ctx, installDir, desc.PostInstallAction); err != nil {
			return nil, fix.FromError(err)
		}
	}

	rec := &fix.InstalledRecord{
		GUID:             desc.GUID,
		Name:             desc.Name,
		Version:          desc.Version,
		VersionString:    desc.VersionString,
		InstallID:        uuid.NewString(),
		InstalledAt:      time.Now().UTC(),
		BackupFolderName: backupName,
		InstalledFiles:   installedFiles,
		AppliedOverrides: applied,
		SharedFix:        nested,
	}

	flog.Info("fix installed", logging.KeyInstallID, rec.InstallID, "version", desc.Version)
	return rec, fix.Ok()
}

// preflight validates the descriptor and the platform preconditions it
// declares. Failures are reported results, not faults.
func (i *Installer) preflight(desc *fix.Descriptor, installDir string) fix.Result {
	if err := desc.Validate(); err != nil {
		return fix.Fail(fix.PreconditionError, "invalid descriptor: %v", err)
	}

	info, err := os.Stat(installDir)
	if err != nil || !info.IsDir() {
		return fix.Fail(fix.PreconditionError, "install directory %s does not exist", installDir)
	}

	if len(desc.Overrides) > 0 {
		if !i.cfg.WineOverridesSupported {
			return fix.Fail(fix.PreconditionError, "fix requires dll overrides, not supported on this platform")
		}
		if st, err := os.Stat(i.cfg.WinePrefixDir); err != nil || !st.IsDir() {
			return fix.Fail(fix.PreconditionError, "wine prefix directory %s does not exist", i.cfg.WinePrefixDir)
		}
	}

	if i.cfg.MinFreeDiskMB > 0 {
		if usage, err := disk.Usage(installDir); err == nil {
			if usage.Free < uint64(i.cfg.MinFreeDiskMB)*1024*1024 {
				return fix.Fail(fix.PreconditionError, "less than %d MB free on install volume", i.cfg.MinFreeDiskMB)
			}
		}
	}

	return fix.Ok()
}

// acquireArchive resolves the fix's archive to a local path. With no download
// URL the phase is a no-op. A cached copy whose hash no longer matches is
// deleted and re-fetched rather than surfaced as an error.
func (i *Installer) acquireArchive(ctx context.Context, desc *fix.Descriptor, tracker *progress.Tracker) (string, fix.Result) {
	if desc.DownloadURL == "" {
		return "", fix.Ok()
	}

	fileName := path.Base(desc.DownloadURL)
	if fileName == "." || fileName == "/" {
		return "", fix.Fail(fix.GenericError, "download url %s has no file name", desc.DownloadURL)
	}

	if i.cfg.LocalRepoMode {
		local := filepath.Join(i.cfg.LocalRepoPath, fileName)
		if _, err := os.Stat(local); err != nil {
			return "", fix.Fail(fix.GenericError, "archive %s not found in local repo", fileName)
		}
		return local, fix.Ok()
	}

	if err := os.MkdirAll(i.cfg.CacheDir, 0755); err != nil {
		return "", fix.FromError(err)
	}
	cachePath := filepath.Join(i.cfg.CacheDir, fileName)

	if _, err := os.Stat(cachePath); err == nil {
		if desc.ContentHash == "" {
			return cachePath, fix.Ok()
		}
		actual, err := download.HashFile(cachePath)
		if err == nil && download.HashEqual(actual, desc.ContentHash) {
			log.Debug("using cached archive", "path", cachePath)
			return cachePath, fix.Ok()
		}
		// Stale or corrupt cache entry; re-fetch silently.
		log.Warn("cached archive failed verification, refetching", "path", cachePath)
		os.Remove(cachePath)
	}

	outcome := i.downloader.Download(ctx, desc.DownloadURL, cachePath, desc.ContentHash, tracker)
	if outcome.Kind != fix.Success {
		// The downloader leaves a hash-mismatched file in place; disposal is
		// this caller's decision, and a bad archive is of no use to keep.
		if outcome.LocalPath != "" {
			os.Remove(outcome.LocalPath)
		}
		return "", fix.Result{Kind: outcome.Kind, Message: outcome.Message}
	}
	return outcome.LocalPath, fix.Ok()
}

// backupPhase snapshots, in fixed order, everything the install is about to
// mutate: archive-overwritten files and explicit delete/patch targets with
// move semantics, explicit backup targets with copy semantics.
func (i *Installer) backupPhase(desc *fix.Descriptor, installDir string, installedFiles []string) (string, string, fix.Result) {
	backupDir, err := i.backups.PrepareFolder(installDir, desc.DisplayName())
	if err != nil {
		return "", "", fix.FromError(err)
	}

	steps := []struct {
		files  []string
		delete bool
	}{
		{installedFiles, true},
		{desc.FilesToDelete, true},
		{desc.FilesToBackup, false},
		{desc.FilesToPatch, true},
	}
	for _, s := range steps {
		if len(s.files) == 0 {
			continue
		}
		if err := i.backups.Backup(s.files, installDir, backupDir, s.delete); err != nil {
			return "", "", fix.FromError(fmt.Errorf("backup: %w", err))
		}
	}

	// An empty folder means nothing needed saving; the record then carries no
	// backup folder name.
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return "", "", fix.FromError(err)
	}
	if len(entries) == 0 {
		os.Remove(backupDir)
		// The backup root itself; Remove is a no-op while other fixes'
		// backup folders still live under it.
		os.Remove(filepath.Dir(backupDir))
		return backupDir, "", fix.Ok()
	}

	return backupDir, filepath.Base(backupDir), fix.Ok()
}
