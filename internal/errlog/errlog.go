// Package errlog appends per-group channel errors to newline-delimited JSON files.
package errlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JakeFAU/epg-queue/internal/queue"
)

// lineSeparator matches the CRLF-terminated logs the grabbers already produce.
const lineSeparator = "\r\n"

// FileLog writes `<baseDir>/errors/<group>.log`.
type FileLog struct {
	mu      sync.Mutex
	baseDir string
}

// New returns a FileLog rooted at baseDir (LOGS_DIR).
func New(baseDir string) (*FileLog, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("logs directory is required")
	}
	return &FileLog{baseDir: baseDir}, nil
}

// Path returns the log file for group.
func (l *FileLog) Path(group string) string {
	return filepath.Join(l.baseDir, "errors", filepath.FromSlash(group)+".log")
}

// Append writes entry as one JSON line to the group's log.
func (l *FileLog) Append(ctx context.Context, group string, entry queue.ErrorEntry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	if strings.TrimSpace(group) == "" {
		return fmt.Errorf("group is required")
	}

	target := l.Path(group)
	errorsDir := filepath.Clean(filepath.Join(l.baseDir, "errors"))
	if !strings.HasPrefix(filepath.Clean(target), errorsDir+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected for group %q", group)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal error entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create log dir for %s: %w", target, err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) // #nosec G304 -- confined to baseDir above.
	if err != nil {
		return fmt.Errorf("open %s: %w", target, err)
	}
	if _, err := f.Write(append(line, lineSeparator...)); err != nil {
		closeErr := f.Close()
		if closeErr != nil {
			return fmt.Errorf("append %s: %w (close: %v)", target, err, closeErr)
		}
		return fmt.Errorf("append %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", target, err)
	}
	return nil
}
