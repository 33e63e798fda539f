package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/rjeczalik/notify"
)

// reloadDebounce coalesces the burst of filesystem events editors emit when
// saving a file.
const reloadDebounce = 300 * time.Millisecond

// FileProvider serves configuration from a TOML file on disk and reloads it
// when the file changes.
type FileProvider struct {
	path   string
	logger *slog.Logger

	mu   sync.RWMutex
	cfg  Config
	subs []func()
}

// NewFileProvider wraps an already-loaded config together with the path it
// came from.
func NewFileProvider(cfg *Config, path string, logger *slog.Logger) *FileProvider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileProvider{path: path, cfg: *cfg, logger: logger}
}

// GetSftpConfig implements Provider.
func (p *FileProvider) GetSftpConfig() (SftpConfig, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.cfg.Sftp.HasCredentials() {
		return SftpConfig{}, ErrNotConfigured
	}
	return cloneSftp(p.cfg.Sftp), nil
}

// GetJellyfinConfig implements Provider.
func (p *FileProvider) GetJellyfinConfig() (JellyfinConfig, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cfg.Jellyfin.ServerURL == "" || p.cfg.Jellyfin.APIKey == "" {
		return JellyfinConfig{}, ErrNotConfigured
	}
	return cloneJellyfin(p.cfg.Jellyfin), nil
}

// OnConfigChanged implements Provider.
func (p *FileProvider) OnConfigChanged(fn func()) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	p.subs = append(p.subs, fn)
	p.mu.Unlock()
}

// Config returns a copy of the full configuration.
func (p *FileProvider) Config() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cfg := p.cfg
	cfg.Sftp = cloneSftp(p.cfg.Sftp)
	cfg.Jellyfin = cloneJellyfin(p.cfg.Jellyfin)
	return cfg
}

// Reload re-reads the configuration file and, on success, fires change
// callbacks. A file that fails to parse or validate leaves the previous
// snapshot in place.
func (p *FileProvider) Reload() error {
	cfg, _, _, err := Load(p.path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.cfg = *cfg
	subs := make([]func(), len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
	return nil
}

// Watch monitors the config file for writes until ctx is cancelled,
// reloading after each change. It returns immediately once the watch is
// established.
func (p *FileProvider) Watch(ctx context.Context) error {
	events := make(chan notify.EventInfo, 8)
	dir := filepath.Dir(p.path)
	if err := notify.Watch(dir, events, notify.Create, notify.Write, notify.Rename); err != nil {
		return err
	}

	go func() {
		defer notify.Stop(events)
		var pending *time.Timer
		var pendingC <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if pending != nil {
					pending.Stop()
				}
				return
			case evt := <-events:
				if filepath.Clean(evt.Path()) != p.path {
					continue
				}
				if pending == nil {
					pending = time.NewTimer(reloadDebounce)
					pendingC = pending.C
				} else {
					pending.Reset(reloadDebounce)
				}
			case <-pendingC:
				pending = nil
				pendingC = nil
				if err := p.Reload(); err != nil {
					p.logger.Warn("config reload failed; keeping previous snapshot",
						slog.String("path", p.path),
						slog.Any("error", err),
					)
					continue
				}
				p.logger.Info("configuration reloaded", slog.String("path", p.path))
			}
		}
	}()
	return nil
}
