package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"SignalPulse/internal/domain/models"
	applogger "SignalPulse/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

type signalDocument struct {
	AntidelaySeconds int             `yaml:"antidelay_seconds"`
	Signals          []models.Signal `yaml:"signals"`
}

// FileSignalStore keeps signals and antidelay in a single YAML document.
// Writes go through a temp file and rename so readers never see a partial file.
type FileSignalStore struct {
	path string
	l    *applogger.Logger
}

func NewFileSignalStore(path string, l *applogger.Logger) (*FileSignalStore, error) {
	if l == nil {
		l = applogger.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileSignalStore{path: path, l: l}, nil
}

func (s *FileSignalStore) Path() string { return s.path }

func (s *FileSignalStore) read() (signalDocument, error) {
	var doc signalDocument
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("%w: read %s: %w", models.ErrTransientStorage, s.path, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *FileSignalStore) write(doc signalDocument) error {
	if doc.Signals == nil {
		doc.Signals = []models.Signal{}
	}
	content, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".signals-tmp-*.yaml")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", models.ErrTransientStorage, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("%w: write temp file: %w", models.ErrTransientStorage, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync temp file: %w", models.ErrTransientStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %w", models.ErrTransientStorage, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: atomic rename: %w", models.ErrTransientStorage, err)
	}
	return nil
}

func (s *FileSignalStore) LoadSignals(ctx context.Context) ([]models.Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	if doc.Signals == nil {
		return []models.Signal{}, nil
	}
	return doc.Signals, nil
}

// SaveSignals replaces the list and keeps the stored antidelay.
func (s *FileSignalStore) SaveSignals(ctx context.Context, signals []models.Signal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Signals = signals
	return s.write(doc)
}

func (s *FileSignalStore) LoadAntidelaySeconds(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	doc, err := s.read()
	if err != nil {
		return 0, err
	}
	return doc.AntidelaySeconds, nil
}

func (s *FileSignalStore) SaveAntidelaySeconds(ctx context.Context, seconds int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.AntidelaySeconds = seconds
	return s.write(doc)
}

// Watch reports changes to the document, including edits made by other processes.
// The parent directory is watched because atomic writes replace the file inode.
func (s *FileSignalStore) Watch(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.l.Error("fsnotify watcher", applogger.Error(err))
		close(out)
		return out
	}
	dir, base := filepath.Dir(s.path), filepath.Base(s.path)
	if err := watcher.Add(dir); err != nil {
		s.l.Error("fsnotify add", applogger.String("dir", dir), applogger.Error(err))
		_ = watcher.Close()
		close(out)
		return out
	}

	go func() {
		defer close(out)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
					s.l.Debug("signal file changed", applogger.String("op", event.Op.String()))
					coalesce(out)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.l.Warn("fsnotify error", applogger.Error(err))
			}
		}
	}()
	return out
}

func (s *FileSignalStore) Close() error {
	return nil
}
