package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSftp(); err != nil {
		return err
	}
	c.normalizeJellyfin()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Daemon.DataDir) == "" {
		c.Daemon.DataDir = defaultDataDir
	}
	if c.Daemon.DataDir, err = expandPath(c.Daemon.DataDir); err != nil {
		return fmt.Errorf("daemon.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Daemon.LogDir) == "" {
		c.Daemon.LogDir = defaultLogDir
	}
	if c.Daemon.LogDir, err = expandPath(c.Daemon.LogDir); err != nil {
		return fmt.Errorf("daemon.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSftp() error {
	c.Sftp.Host = strings.TrimSpace(c.Sftp.Host)
	c.Sftp.Username = strings.TrimSpace(c.Sftp.Username)
	c.Sftp.RemoteRoot = strings.TrimSpace(c.Sftp.RemoteRoot)
	if c.Sftp.RemoteRoot != "" {
		c.Sftp.RemoteRoot = "/" + strings.Trim(c.Sftp.RemoteRoot, "/")
	}
	if c.Sftp.Password == "" {
		if value, ok := os.LookupEnv("TIDESYNC_SFTP_PASSWORD"); ok {
			c.Sftp.Password = value
		}
	}
	if strings.TrimSpace(c.Sftp.LocalRoot) != "" {
		expanded, err := expandPath(c.Sftp.LocalRoot)
		if err != nil {
			return fmt.Errorf("sftp.local_root: %w", err)
		}
		c.Sftp.LocalRoot = expanded
	}
	if c.Sftp.Port == 0 {
		c.Sftp.Port = defaultSftpPort
	}

	folders := c.Sftp.SkipFolders[:0]
	for _, folder := range c.Sftp.SkipFolders {
		if trimmed := strings.TrimSpace(folder); trimmed != "" {
			folders = append(folders, trimmed)
		}
	}
	c.Sftp.SkipFolders = folders
	return nil
}

func (c *Config) normalizeJellyfin() {
	c.Jellyfin.ServerURL = strings.TrimRight(strings.TrimSpace(c.Jellyfin.ServerURL), "/")
	if c.Jellyfin.APIKey == "" {
		if value, ok := os.LookupEnv("TIDESYNC_JELLYFIN_API_KEY"); ok {
			c.Jellyfin.APIKey = value
		}
	}
	c.Jellyfin.APIKey = strings.TrimSpace(c.Jellyfin.APIKey)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
