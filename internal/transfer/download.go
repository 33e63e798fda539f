package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"tidesync/internal/remotefs"
)

// chunkSize bounds how much data moves between cancellation checkpoints.
const chunkSize = 1 << 20

// speedWindow throttles download-speed updates.
const speedWindow = time.Second

// downloadFile streams one remote file into a temp file and renames it into
// place once the size has been verified. Any error leaves no partial file
// behind.
func (e *Engine) downloadFile(ctx context.Context, fs remotefs.FS, item planItem, index, total int) (err error) {
	if err := os.MkdirAll(filepath.Dir(item.localPath), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	remote, err := fs.OpenRead(ctx, item.remotePath)
	if err != nil {
		return err
	}
	defer remote.Close()

	tempPath := item.localPath + ".partial"
	local, err := os.OpenFile(tempPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = local.Close()
			_ = os.Remove(tempPath)
		}
	}()

	meter := newSpeedMeter()
	buf := make([]byte, chunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := remote.Read(buf)
		if n > 0 {
			if _, writeErr := local.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("write %s: %w", tempPath, writeErr)
			}
			written += int64(n)
			e.reportFileProgress(item, written, index, total, meter)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read %s: %w", item.remotePath, readErr)
		}
	}

	if err := local.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if item.size >= 0 && written != item.size {
		_ = os.Remove(tempPath)
		return fmt.Errorf("size mismatch for %s: got %d, want %d", item.remotePath, written, item.size)
	}
	if err := os.Rename(tempPath, item.localPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("finalize %s: %w", item.localPath, err)
	}
	return nil
}

// reportFileProgress folds the in-flight file's byte fraction into the
// overall run progress and refreshes the rolling speed.
func (e *Engine) reportFileProgress(item planItem, written int64, index, total int, meter *speedMeter) {
	if total > 0 {
		fraction := 0.0
		if item.size > 0 {
			fraction = float64(written) / float64(item.size)
			if fraction > 1 {
				fraction = 1
			}
		}
		overall := (float64(index) + fraction) / float64(total) * 100
		e.tracker.SetProgress(int(overall))
	}
	if speed, ok := meter.sample(written); ok {
		e.tracker.SetDownloadSpeed(speed)
	}
}

// speedMeter derives a humanized bytes-per-second rate from cumulative byte
// counts, sampled at most once per speedWindow.
type speedMeter struct {
	lastTime  time.Time
	lastBytes int64
}

func newSpeedMeter() *speedMeter {
	return &speedMeter{lastTime: time.Now()}
}

func (m *speedMeter) sample(totalBytes int64) (string, bool) {
	now := time.Now()
	elapsed := now.Sub(m.lastTime)
	if elapsed < speedWindow {
		return "", false
	}
	delta := totalBytes - m.lastBytes
	if delta < 0 {
		delta = 0
	}
	rate := float64(delta) / elapsed.Seconds()
	m.lastTime = now
	m.lastBytes = totalBytes
	return humanize.IBytes(uint64(rate)) + "/s", true
}
