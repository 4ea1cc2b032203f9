// Package fix defines the fix descriptor and installed-fix data model.
package fix

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Descriptor describes a fix: a named, versioned package of filesystem and
// environment changes applied to a target application installation. It is
// immutable once loaded; the installer borrows it for the duration of one
// install.
type Descriptor struct {
	GUID          string `json:"guid"`
	Name          string `json:"name"`
	Version       int    `json:"version"`
	VersionString string `json:"versionString,omitempty"`

	// InstallFolder is the subdirectory of the target install directory the
	// fix's content is rooted at. Empty means the install directory itself.
	InstallFolder string `json:"installFolder,omitempty"`

	FilesToDelete []string `json:"filesToDelete,omitempty"`
	FilesToBackup []string `json:"filesToBackup,omitempty"`
	FilesToPatch  []string `json:"filesToPatch,omitempty"`

	DownloadURL string `json:"downloadUrl,omitempty"`
	ContentHash string `json:"contentHash,omitempty"`

	// Variant selects a named alternative subset of the archive's contents.
	Variant string `json:"variant,omitempty"`

	// Overrides lists DLL names to force to the bundled implementation via
	// the Wine override registry.
	Overrides []string `json:"overrides,omitempty"`

	// PostInstallAction is a relative path to an executable launched from the
	// install directory after a successful install.
	PostInstallAction string `json:"postInstallAction,omitempty"`

	// SharedFix is an optional prerequisite fix, installed first.
	SharedFix              *Descriptor `json:"sharedFix,omitempty"`
	SharedFixInstallFolder string      `json:"sharedFixInstallFolder,omitempty"`
}

// DisplayName returns the name used for logging and backup folder naming.
func (d *Descriptor) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.GUID
}

// Validate checks the descriptor for structural problems: missing identity,
// unsafe relative paths, and cycles in the shared-fix chain. Called at load
// time so the installer can assume a well-formed, acyclic graph.
func (d *Descriptor) Validate() error {
	seen := map[string]bool{}
	for cur := d; cur != nil; cur = cur.SharedFix {
		if cur.GUID == "" {
			return fmt.Errorf("fix %q: missing guid", cur.DisplayName())
		}
		if seen[cur.GUID] {
			return fmt.Errorf("fix %q: shared fix cycle through %s", d.DisplayName(), cur.GUID)
		}
		seen[cur.GUID] = true

		for _, list := range [][]string{cur.FilesToDelete, cur.FilesToBackup, cur.FilesToPatch} {
			for _, p := range list {
				if err := checkRelPath(p); err != nil {
					return fmt.Errorf("fix %q: %w", cur.DisplayName(), err)
				}
			}
		}
		if cur.InstallFolder != "" {
			if err := checkRelPath(cur.InstallFolder); err != nil {
				return fmt.Errorf("fix %q: install folder: %w", cur.DisplayName(), err)
			}
		}
		if cur.PostInstallAction != "" {
			if err := checkRelPath(cur.PostInstallAction); err != nil {
				return fmt.Errorf("fix %q: post install action: %w", cur.DisplayName(), err)
			}
		}
	}
	return nil
}

func checkRelPath(p string) error {
	if p == "" {
		return fmt.Errorf("empty file path")
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") || strings.Contains(p, ":") {
		return fmt.Errorf("absolute path not allowed: %s", p)
	}
	clean := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("path escapes install directory: %s", p)
	}
	return nil
}

// InstalledRecord is produced by a successful install and persisted by the
// caller for later uninstall and rollback.
type InstalledRecord struct {
	GUID          string `json:"guid"`
	Name          string `json:"name"`
	Version       int    `json:"version"`
	VersionString string `json:"versionString,omitempty"`

	// InstallID uniquely identifies this install attempt.
	InstallID   string    `json:"installId"`
	InstalledAt time.Time `json:"installedAt"`

	// BackupFolderName is empty if nothing was backed up.
	BackupFolderName string `json:"backupFolderName,omitempty"`

	// InstalledFiles lists relative paths extracted from the archive.
	InstalledFiles []string `json:"installedFiles,omitempty"`

	// AppliedOverrides lists the override lines actually written, so they can
	// be reversed later.
	AppliedOverrides []string `json:"appliedOverrides,omitempty"`

	SharedFix *InstalledRecord `json:"sharedFix,omitempty"`
}
