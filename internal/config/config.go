// Package config loads and persists installer configuration.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Config holds all installer settings. Capability flags are resolved once at
// load time; components receive them as plain configuration.
type Config struct {
	CacheDir        string `mapstructure:"cache_dir"`
	BackupRoot      string `mapstructure:"backup_root"`
	LocalRepoMode   bool   `mapstructure:"local_repo_mode"`
	LocalRepoPath   string `mapstructure:"local_repo_path"`
	TrustedHashHost string `mapstructure:"trusted_hash_host"`

	DownloadTimeoutSeconds int `mapstructure:"download_timeout_seconds"`
	ResumeMaxRetries       int `mapstructure:"resume_max_retries"`
	ProgressStepBytes      int `mapstructure:"progress_step_bytes"`
	MinFreeDiskMB          int `mapstructure:"min_free_disk_mb"`
	PatchWorkers           int `mapstructure:"patch_workers"`

	WineOverridesSupported bool   `mapstructure:"wine_overrides_supported"`
	WinePrefixDir          string `mapstructure:"wine_prefix_dir"`

	DeltaCommand string `mapstructure:"delta_command"`

	LogFormat     string `mapstructure:"log_format"`
	LogLevel      string `mapstructure:"log_level"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
}

func Default() *Config {
	return &Config{
		CacheDir:               filepath.Join(dataDir(), "cache"),
		BackupRoot:             ".superheater",
		TrustedHashHost:        "s3.amazonaws.com",
		DownloadTimeoutSeconds: 300,
		ResumeMaxRetries:       5,
		ProgressStepBytes:      256 * 1024,
		MinFreeDiskMB:          200,
		PatchWorkers:           1,
		WineOverridesSupported: runtime.GOOS != "windows",
		DeltaCommand:           "octodiff patch {original} {patch} {output}",
		LogFormat:              "text",
		LogLevel:               "info",
		LogMaxSizeMB:           20,
		LogMaxBackups:          3,
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("superheater")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(dataDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SUPERHEATER")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("cache_dir", cfg.CacheDir)
	viper.Set("backup_root", cfg.BackupRoot)
	viper.Set("local_repo_mode", cfg.LocalRepoMode)
	viper.Set("local_repo_path", cfg.LocalRepoPath)
	viper.Set("trusted_hash_host", cfg.TrustedHashHost)
	viper.Set("download_timeout_seconds", cfg.DownloadTimeoutSeconds)
	viper.Set("resume_max_retries", cfg.ResumeMaxRetries)
	viper.Set("progress_step_bytes", cfg.ProgressStepBytes)
	viper.Set("min_free_disk_mb", cfg.MinFreeDiskMB)
	viper.Set("patch_workers", cfg.PatchWorkers)
	viper.Set("wine_overrides_supported", cfg.WineOverridesSupported)
	viper.Set("wine_prefix_dir", cfg.WinePrefixDir)
	viper.Set("delta_command", cfg.DeltaCommand)
	viper.Set("log_format", cfg.LogFormat)
	viper.Set("log_level", cfg.LogLevel)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(dataDir(), "superheater.yaml")
		if err := os.MkdirAll(dataDir(), 0700); err != nil {
			return err
		}
	}

	return viper.WriteConfigAs(cfgPath)
}

// GetDataDir returns the platform data directory for the installer.
func GetDataDir() string {
	return dataDir()
}

func dataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "Superheater")
	case "darwin":
		return filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Superheater")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "superheater")
		}
		return filepath.Join(os.Getenv("HOME"), ".local", "share", "superheater")
	}
}
