package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Daemon contains directory configuration for the background service.
type Daemon struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// SftpConfig describes the remote tree to mirror and the auto-sync cadence.
type SftpConfig struct {
	Host                string   `toml:"host"`
	Port                int      `toml:"port"`
	Username            string   `toml:"username"`
	Password            string   `toml:"password"`
	RemoteRoot          string   `toml:"remote_root"`
	LocalRoot           string   `toml:"local_root"`
	SkipFolders         []string `toml:"skip_folders"`
	SyncIntervalMinutes int      `toml:"sync_interval_minutes"`
	AutoSyncEnabled     bool     `toml:"auto_sync_enabled"`
	StartAfter          string   `toml:"start_after"`
}

// JellyfinSelectedTask is one maintenance task queued for orchestration.
type JellyfinSelectedTask struct {
	Key     string `toml:"key"`
	Name    string `toml:"name"`
	Enabled bool   `toml:"enabled"`
	Order   int    `toml:"order"`
}

// JellyfinConfig describes the media server and the ordered task selection.
type JellyfinConfig struct {
	ServerURL          string                 `toml:"server_url"`
	APIKey             string                 `toml:"api_key"`
	IncludeHiddenTasks bool                   `toml:"include_hidden_tasks"`
	SelectedTasks      []JellyfinSelectedTask `toml:"selected_tasks"`
	Tested             bool                   `toml:"tested"`
}

// Config encapsulates all configuration values for tidesync.
//
// Configuration sections by subsystem:
//   - Daemon: data and log directories
//   - Logging: log format and level
//   - Sftp: remote mirror source, filters, and auto-sync cadence
//   - Jellyfin: media server connection and ordered task selection
type Config struct {
	Daemon   Daemon         `toml:"daemon"`
	Logging  Logging        `toml:"logging"`
	Sftp     SftpConfig     `toml:"sftp"`
	Jellyfin JellyfinConfig `toml:"jellyfin"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tidesync/config.toml")
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tidesync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation. The
// local mirror root is created on a best-effort basis so the daemon can run
// when external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Daemon.DataDir, c.Daemon.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Sftp.LocalRoot) != "" {
		_ = os.MkdirAll(c.Sftp.LocalRoot, 0o755)
	}
	return nil
}

// SyncInterval returns the auto-sync cadence as a duration.
func (s SftpConfig) SyncInterval() time.Duration {
	return time.Duration(s.SyncIntervalMinutes) * time.Minute
}

// StartAfterTime parses the optional modification-time floor. ok=false means
// no floor is configured.
func (s SftpConfig) StartAfterTime() (time.Time, bool) {
	trimmed := strings.TrimSpace(s.StartAfter)
	if trimmed == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// SkipFolderSet returns the folder filter as a lowercase lookup set.
func (s SftpConfig) SkipFolderSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.SkipFolders))
	for _, folder := range s.SkipFolders {
		trimmed := strings.ToLower(strings.TrimSpace(folder))
		if trimmed == "" {
			continue
		}
		set[trimmed] = struct{}{}
	}
	return set
}

// HasCredentials reports whether every field required to open an SFTP
// session is present.
func (s SftpConfig) HasCredentials() bool {
	return strings.TrimSpace(s.Host) != "" &&
		strings.TrimSpace(s.Username) != "" &&
		s.Password != "" &&
		strings.TrimSpace(s.RemoteRoot) != "" &&
		strings.TrimSpace(s.LocalRoot) != ""
}

// EnabledTasks returns the selected tasks that are enabled, sorted by
// ascending order value.
func (j JellyfinConfig) EnabledTasks() []JellyfinSelectedTask {
	tasks := make([]JellyfinSelectedTask, 0, len(j.SelectedTasks))
	for _, task := range j.SelectedTasks {
		if task.Enabled {
			tasks = append(tasks, task)
		}
	}
	sort.SliceStable(tasks, func(a, b int) bool { return tasks[a].Order < tasks[b].Order })
	return tasks
}

// CreateSample writes the annotated sample configuration to the given path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ExpandPath resolves ~ and returns a cleaned absolute path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
