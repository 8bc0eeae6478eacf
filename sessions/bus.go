package sessions

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// UserKey names the persisted user record in change events.
const UserKey = "user"

// Event reports that a persisted session record changed. Origin is the tab that made the
// change when the bus knows it, "" otherwise.
type Event struct {
	Key    string
	Origin string
}

// Bus carries storage change notifications between the tabs (windows, processes) that
// share the same persisted session.
type Bus interface {
	Publish(ev Event)
	Subscribe(fn func(Event)) (unsubscribe func())
}

type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Event)
}

func (s *subscribers) add(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(Event))
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.fns, id)
	}
}

func (s *subscribers) emit(ev Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// MemoryBus delivers events synchronously to every subscriber in the process.
type MemoryBus struct {
	subs subscribers
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Publish(ev Event) {
	b.subs.emit(ev)
}

func (b *MemoryBus) Subscribe(fn func(Event)) func() {
	return b.subs.add(fn)
}

// NopBus is used by single-window consumers.
type NopBus struct{}

func (NopBus) Publish(Event) {}

func (NopBus) Subscribe(func(Event)) func() { return func() {} }

// FileBus turns changes to a user file made by any process into events. Publish is a
// no-op: writing the file is the notification.
type FileBus struct {
	path    string
	watcher *fsnotify.Watcher
	subs    subscribers
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewFileBus watches the directory holding path and starts delivering events.
func NewFileBus(path string) (*FileBus, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("[NewFileBus] watcher: %w", err)
	}
	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("[NewFileBus] watch %s: %w", filepath.Dir(path), err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &FileBus{path: path, watcher: w, cancel: cancel, done: make(chan struct{})}
	go b.loop(ctx)
	return b, nil
}

func (b *FileBus) Publish(Event) {}

func (b *FileBus) Subscribe(fn func(Event)) func() {
	return b.subs.add(fn)
}

// Close stops the watcher. Safe for repeated use.
func (b *FileBus) Close() error {
	b.cancel()
	err := b.watcher.Close()
	<-b.done
	return err
}

func (b *FileBus) loop(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != b.path {
				continue
			}
			if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) &&
				!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			b.subs.emit(Event{Key: UserKey})
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("path", b.path).Msg("User file watch error")
		}
	}
}
