// Package executor launches a fix's post-install action.
package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/logging"
)

var log = logging.L("executor")

// Launcher starts post-install actions as independent processes rooted at
// the install directory.
type Launcher struct{}

func NewLauncher() *Launcher {
	return &Launcher{}
}

// RunPostInstall starts the executable at installDir/relPath with the install
// directory as its working directory. The process outlives the installer;
// its exit status is not awaited. A failure to start is surfaced.
func (l *Launcher) RunPostInstall(ctx context.Context, installDir, relPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	exePath := filepath.Join(installDir, filepath.FromSlash(relPath))
	if _, err := os.Stat(exePath); err != nil {
		return fmt.Errorf("post install action %s: %w", relPath, err)
	}

	// Deliberately not CommandContext: the process outlives the install call.
	cmd := exec.Command(exePath)
	cmd.Dir = installDir

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start post install action %s: %w", relPath, err)
	}
	log.Info("post install action started", "path", relPath, "pid", cmd.Process.Pid)

	// Reap the process in the background so it doesn't linger as a zombie.
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Warn("post install action exited with error", "path", relPath, logging.KeyError, err)
		}
	}()

	return nil
}
