package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/archive"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/config"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/delta"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/fix"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/installer"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/logging"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/progress"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/workerpool"
)

var (
	version    = "0.1.0"
	cfgFile    string
	installDir string
	recordPath string
)

var rootCmd = &cobra.Command{
	Use:   "superheater",
	Short: "Superheater fix installer",
	Long:  `Superheater - installs third-party fixes into a game's install directory`,
}

var installCmd = &cobra.Command{
	Use:   "install [descriptor.json]",
	Short: "Install a fix described by a descriptor file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstall(args[0])
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean-backups",
	Short: "Remove stale backup folders from the install directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCleanBackups()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Superheater v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the platform data dir)")
	rootCmd.PersistentFlags().StringVar(&installDir, "dir", "", "target install directory")
	installCmd.Flags().StringVar(&recordPath, "record", "", "write the installed-fix record to this file")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *installer.Installer, *workerpool.Pool, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	// Progress rendering owns stdout, so logs go to stderr and, when a log
	// file is configured, to a rotating file as well.
	var logOut io.Writer = os.Stderr
	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			return nil, nil, nil, err
		}
		logOut = logging.TeeWriter(os.Stderr, rw)
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, logOut)

	deltaSvc, err := delta.NewCommandService(cfg.DeltaCommand)
	if err != nil {
		return nil, nil, nil, err
	}

	pool := workerpool.New(cfg.PatchWorkers, cfg.PatchWorkers)
	inst := installer.New(cfg, archive.NewZipService(), deltaSvc, pool)
	return cfg, inst, pool, nil
}

func runInstall(descriptorPath string) error {
	if installDir == "" {
		return fmt.Errorf("--dir is required")
	}

	data, err := os.ReadFile(descriptorPath)
	if err != nil {
		return fmt.Errorf("read descriptor: %w", err)
	}
	var desc fix.Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return fmt.Errorf("parse descriptor: %w", err)
	}
	if err := desc.Validate(); err != nil {
		return err
	}

	_, inst, pool, err := setup()
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec, res := inst.Install(ctx, &desc, installDir, printProgress())
	fmt.Println()
	if !res.IsSuccess() {
		return fmt.Errorf("install %s: %s", desc.DisplayName(), res)
	}

	fmt.Printf("Installed %s (version %d)\n", desc.DisplayName(), desc.Version)
	if recordPath != "" {
		out, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(recordPath, out, 0644); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	return nil
}

func runCleanBackups() error {
	if installDir == "" {
		return fmt.Errorf("--dir is required")
	}

	_, inst, pool, err := setup()
	if err != nil {
		return err
	}
	defer pool.Close()

	// Without a record store to consult, every backup folder is stale.
	stale, err := inst.Backups().ListStale(installDir, nil)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		fmt.Println("No stale backups found")
		return nil
	}
	if err := inst.Backups().ClearStale(installDir, nil); err != nil {
		return err
	}
	fmt.Printf("Removed %d stale backup folder(s)\n", len(stale))
	return nil
}

// printProgress renders phase and percentage on a single terminal line.
func printProgress() progress.Callback {
	return func(ev progress.Event) {
		if ev.Phase == "" {
			return
		}
		fmt.Printf("\r%-14s %5.1f%%", ev.Phase, ev.Percent)
	}
}
