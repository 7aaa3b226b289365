package quiz

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ydethe/quizzy/internal/observability/logger"
)

const reloadDelay = 500 * time.Millisecond

// Watch observa dir y llama onChange(nombre) cuando un .yml/.yaml cambia,
// se crea o se borra. Los eventos de un mismo archivo se agrupan (500ms).
// Termina cuando ctx se cancela.
func Watch(ctx context.Context, dir string, onChange func(name string)) error {
	return watch(ctx, dir, reloadDelay, onChange)
}

func watch(ctx context.Context, dir string, delay time.Duration, onChange func(string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return err
	}
	log := logger.Named("quiz.watch")
	changed := make(chan string)
	go debounce(ctx, changed, delay, onChange)
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename) {
					continue
				}
				name, ok := quizName(filepath.Base(ev.Name))
				if !ok {
					continue
				}
				select {
				case changed <- name:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("quiz watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

func debounce(ctx context.Context, in <-chan string, delay time.Duration, fn func(string)) {
	pending := map[string]struct{}{}
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case name := <-in:
			pending[name] = struct{}{}
			if timer != nil {
				timer.Reset(delay)
			} else {
				timer = time.NewTimer(delay)
				fire = timer.C
			}
		case <-fire:
			timer, fire = nil, nil
			for name := range pending {
				fn(name)
			}
			pending = map[string]struct{}{}
		}
	}
}
