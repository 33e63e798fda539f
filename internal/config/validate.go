package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSftp(); err != nil {
		return err
	}
	if err := c.validateJellyfin(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSftp() error {
	if c.Sftp.Port < 1 || c.Sftp.Port > 65535 {
		return errors.New("sftp.port must be between 1 and 65535")
	}
	if c.Sftp.SyncIntervalMinutes < 5 {
		return errors.New("sftp.sync_interval_minutes must be at least 5")
	}
	if c.Sftp.SyncIntervalMinutes > 24*60 {
		return errors.New("sftp.sync_interval_minutes must be at most 1440")
	}
	if trimmed := strings.TrimSpace(c.Sftp.StartAfter); trimmed != "" {
		if _, err := time.Parse(time.RFC3339, trimmed); err != nil {
			return fmt.Errorf("sftp.start_after must be RFC 3339: %w", err)
		}
	}
	if c.Sftp.AutoSyncEnabled && !c.Sftp.HasCredentials() {
		return errors.New("sftp host, username, password, remote_root, and local_root must be set when sftp.auto_sync_enabled is true")
	}
	return nil
}

func (c *Config) validateJellyfin() error {
	if !c.Jellyfin.Tested {
		return nil
	}
	if c.Jellyfin.ServerURL == "" {
		return errors.New("jellyfin.server_url must be set when jellyfin.tested is true")
	}
	if c.Jellyfin.APIKey == "" {
		return errors.New("jellyfin.api_key must be set when jellyfin.tested is true")
	}
	seen := make(map[string]struct{}, len(c.Jellyfin.SelectedTasks))
	for _, task := range c.Jellyfin.SelectedTasks {
		key := strings.TrimSpace(task.Key)
		if key == "" {
			return fmt.Errorf("jellyfin.selected_tasks entry %q is missing a key", task.Name)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("jellyfin.selected_tasks contains duplicate key %q", key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
