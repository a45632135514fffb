package profile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/m3rciful/quizbot/core/logger"
)

// Backend persists the full document. Save must leave at least one readable
// copy behind even when it fails part way.
type Backend interface {
	// Load returns nil without error when nothing was stored yet.
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, doc *Document) error
	Name() string
}

// FileBackend keeps the document in a JSON file next to a transient backup.
type FileBackend struct {
	path string
	loc  *time.Location
}

// NewFileBackend returns a backend writing to path. Legacy dates are read in loc.
func NewFileBackend(path string, loc *time.Location) *FileBackend {
	if loc == nil {
		loc = time.Local
	}
	return &FileBackend{path: path, loc: loc}
}

// Name identifies the backend in logs.
func (b *FileBackend) Name() string { return "file" }

// Path returns the primary file path.
func (b *FileBackend) Path() string { return b.path }

func (b *FileBackend) backupPath() string { return b.path + ".bak" }
func (b *FileBackend) tempPath() string   { return b.path + ".tmp" }

// Load reads the primary file and falls back to the backup when the primary
// is missing or unreadable.
func (b *FileBackend) Load(ctx context.Context) (*Document, error) {
	doc, primaryErr := b.read(b.path)
	if primaryErr == nil {
		return doc, nil
	}

	backup, backupErr := b.read(b.backupPath())
	if backupErr == nil {
		logger.Warn(ctx, "store", "load.backup",
			slog.String("path", b.backupPath()),
			slog.String("cause", primaryErr.Error()),
		)
		return backup, nil
	}

	if errors.Is(primaryErr, fs.ErrNotExist) {
		if errors.Is(backupErr, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("load backup: %w", backupErr)
	}
	return nil, fmt.Errorf("load %s: %w", b.path, primaryErr)
}

func (b *FileBackend) read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeDocument(data, b.loc)
}

// Save writes path.tmp, moves the primary aside to path.bak, promotes the
// temp file and drops the backup. A failed promotion restores the backup.
func (b *FileBackend) Save(ctx context.Context, doc *Document) error {
	data, err := EncodeDocument(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if dir := filepath.Dir(b.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}

	tmp := b.tempPath()
	if err := writeSynced(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp: %w", err)
	}

	hadPrimary := true
	if err := os.Rename(b.path, b.backupPath()); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			_ = os.Remove(tmp)
			return fmt.Errorf("move primary to backup: %w", err)
		}
		hadPrimary = false
	}

	if err := os.Rename(tmp, b.path); err != nil {
		if hadPrimary {
			if rerr := os.Rename(b.backupPath(), b.path); rerr != nil {
				logger.Error(ctx, "store", "restore.fail",
					slog.String("path", b.path),
					slog.String("err", rerr.Error()),
				)
			}
		}
		_ = os.Remove(tmp)
		return fmt.Errorf("promote temp: %w", err)
	}

	if hadPrimary {
		if err := os.Remove(b.backupPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn(ctx, "store", "backup.cleanup",
				slog.String("path", b.backupPath()),
				slog.String("err", err.Error()),
			)
		}
	}
	syncDir(filepath.Dir(b.path))
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// MemoryBackend keeps an encoded copy in memory. Useful in tests and dry runs.
type MemoryBackend struct {
	data    []byte
	saves   int
	FailErr error
}

// Name identifies the backend in logs.
func (m *MemoryBackend) Name() string { return "memory" }

// Load decodes the last saved copy.
func (m *MemoryBackend) Load(context.Context) (*Document, error) {
	if m.data == nil {
		return nil, nil
	}
	return DecodeDocument(m.data, time.UTC)
}

// Save stores an encoded copy or returns FailErr when set.
func (m *MemoryBackend) Save(_ context.Context, doc *Document) error {
	if m.FailErr != nil {
		return m.FailErr
	}
	data, err := EncodeDocument(doc)
	if err != nil {
		return err
	}
	m.data = data
	m.saves++
	return nil
}

// Saves returns the number of successful writes.
func (m *MemoryBackend) Saves() int { return m.saves }
