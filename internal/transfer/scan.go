package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tidesync/internal/config"
	"tidesync/internal/logging"
	"tidesync/internal/remotefs"
)

// planItem is one file selected for download.
type planItem struct {
	name       string
	remotePath string
	localPath  string
	size       int64
}

// scan walks the remote tree depth-first and returns the download plan.
// Entries are visited in name order so the traversal is repeatable across
// runs over an unchanged tree.
func (e *Engine) scan(ctx context.Context, fs remotefs.FS, cfg config.SftpConfig) ([]planItem, error) {
	skip := cfg.SkipFolderSet()
	cutoff := e.resolveCutoff(cfg)

	var plan []planItem
	var walk func(remoteDir, localDir string) error
	walk = func(remoteDir, localDir string) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		entries, err := fs.List(ctx, remoteDir)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Unreadable directories are recorded and skipped; the rest of
			// the tree still syncs.
			e.logger.Warn("cannot list remote directory",
				slog.String("path", remoteDir),
				logging.Error(err),
			)
			e.errs.RecordError(fmt.Sprintf("cannot list %s: %v", remoteDir, err))
			return nil
		}

		sort.Slice(entries, func(a, b int) bool { return entries[a].Name < entries[b].Name })

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			remoteItem := path.Join(remoteDir, entry.Name)
			localItem := filepath.Join(localDir, entry.Name)

			if entry.Dir {
				if _, skipped := skip[strings.ToLower(strings.TrimSpace(entry.Name))]; skipped {
					continue
				}
				if err := walk(remoteItem, localItem); err != nil {
					return err
				}
				continue
			}

			if !cutoff.IsZero() && entry.ModTime.Before(cutoff) {
				continue
			}
			if sameLocalFile(localItem, entry.Size) {
				continue
			}
			plan = append(plan, planItem{
				name:       entry.Name,
				remotePath: remoteItem,
				localPath:  localItem,
				size:       entry.Size,
			})
		}
		return nil
	}

	remoteRoot := cfg.RemoteRoot
	if strings.TrimRight(remoteRoot, "/") != "" {
		remoteRoot = strings.TrimRight(remoteRoot, "/")
	} else {
		remoteRoot = "/"
	}
	if err := walk(remoteRoot, cfg.LocalRoot); err != nil {
		return nil, err
	}
	return plan, nil
}

// resolveCutoff picks the modification-time floor: an explicit start_after
// wins, otherwise the last successful sync, otherwise no floor.
func (e *Engine) resolveCutoff(cfg config.SftpConfig) time.Time {
	if manual, ok := cfg.StartAfterTime(); ok {
		return manual
	}
	if last, ok := e.tracker.LastSyncTime(); ok {
		return last
	}
	return time.Time{}
}

// sameLocalFile reports whether the local mirror already holds a file of the
// expected size. Size equality is the cheap change detector the mirror uses.
func sameLocalFile(localPath string, remoteSize int64) bool {
	info, err := os.Stat(localPath)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() == remoteSize
}
