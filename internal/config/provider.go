package config

import (
	"errors"
	"sync"
)

// ErrNotConfigured signals that a subsystem has no usable configuration yet.
var ErrNotConfigured = errors.New("not configured")

// Provider supplies configuration snapshots to the core and notifies
// subscribers when the configuration changes.
type Provider interface {
	// GetSftpConfig returns the current SFTP settings, or ErrNotConfigured
	// when required connection fields are absent.
	GetSftpConfig() (SftpConfig, error)
	// GetJellyfinConfig returns the current Jellyfin settings, or
	// ErrNotConfigured when the server URL or API key is absent.
	GetJellyfinConfig() (JellyfinConfig, error)
	// OnConfigChanged registers a callback invoked after every successful
	// configuration reload. Callbacks must not block.
	OnConfigChanged(fn func())
}

// StaticProvider wraps a fixed Config. Change callbacks fire only when the
// caller swaps the config explicitly, which also makes it convenient for
// tests.
type StaticProvider struct {
	mu   sync.RWMutex
	cfg  Config
	subs []func()
}

// NewStaticProvider returns a provider serving the given config.
func NewStaticProvider(cfg Config) *StaticProvider {
	return &StaticProvider{cfg: cfg}
}

// GetSftpConfig implements Provider.
func (p *StaticProvider) GetSftpConfig() (SftpConfig, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.cfg.Sftp.HasCredentials() {
		return SftpConfig{}, ErrNotConfigured
	}
	return cloneSftp(p.cfg.Sftp), nil
}

// GetJellyfinConfig implements Provider.
func (p *StaticProvider) GetJellyfinConfig() (JellyfinConfig, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cfg.Jellyfin.ServerURL == "" || p.cfg.Jellyfin.APIKey == "" {
		return JellyfinConfig{}, ErrNotConfigured
	}
	return cloneJellyfin(p.cfg.Jellyfin), nil
}

// OnConfigChanged implements Provider.
func (p *StaticProvider) OnConfigChanged(fn func()) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	p.subs = append(p.subs, fn)
	p.mu.Unlock()
}

// Replace swaps the stored config and fires change callbacks.
func (p *StaticProvider) Replace(cfg Config) {
	p.mu.Lock()
	p.cfg = cfg
	subs := make([]func(), len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

func cloneSftp(cfg SftpConfig) SftpConfig {
	out := cfg
	out.SkipFolders = append([]string(nil), cfg.SkipFolders...)
	return out
}

func cloneJellyfin(cfg JellyfinConfig) JellyfinConfig {
	out := cfg
	out.SelectedTasks = append([]JellyfinSelectedTask(nil), cfg.SelectedTasks...)
	return out
}
