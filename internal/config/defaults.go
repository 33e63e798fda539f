package config

const (
	defaultDataDir             = "~/.local/share/tidesync"
	defaultLogDir              = "~/.local/share/tidesync/logs"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultSftpPort            = 22
	defaultSyncIntervalMinutes = 240
	defaultIncludeHiddenTasks  = true
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Daemon: Daemon{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Sftp: SftpConfig{
			Port:                defaultSftpPort,
			SyncIntervalMinutes: defaultSyncIntervalMinutes,
		},
		Jellyfin: JellyfinConfig{
			IncludeHiddenTasks: defaultIncludeHiddenTasks,
		},
	}
}
