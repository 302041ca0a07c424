package server

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gradesim/gradesim/internal/risk"
)

type modelHolder struct {
	ptr atomic.Pointer[risk.Model]
}

// Model returns the loaded classifier, or nil.
func (s *Server) Model() *risk.Model {
	return s.models.ptr.Load()
}

// SetModel replaces the classifier.
func (s *Server) SetModel(m *risk.Model) {
	s.models.ptr.Store(m)
}

// reloadModel loads the artifact at modelPath. A missing file clears the model;
// an unreadable one keeps the current model.
func (s *Server) reloadModel() {
	m, err := risk.Load(s.modelPath)
	switch {
	case err == nil:
		s.SetModel(m)
		s.logger.Info("model loaded", slog.String("path", s.modelPath))
	case errors.Is(err, fs.ErrNotExist):
		s.SetModel(nil)
		s.logger.Warn("model file not found", slog.String("path", s.modelPath))
	default:
		s.logger.Error("model load failed", slog.String("path", s.modelPath), slog.String("error", err.Error()))
	}
}

// watchModel reloads the model when its file changes.
func (s *Server) watchModel(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	target := filepath.Clean(s.modelPath)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		s.logger.Error("failed to watch model directory", "error", err)
		// Don't fail - continue without watching
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				s.logger.Debug("model file changed, reloading", "file", event.Name)
				s.reloadModel()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}
