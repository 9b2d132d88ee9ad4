// Package watch invalidates caches when their listen path changes. Writing,
// creating or touching the file purges every cache registered with that
// path once the events settle.
package watch

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/unkn0wn-root/autocache"
)

// DefaultDelay is how long a path must stay quiet before its caches are purged.
const DefaultDelay = 500 * time.Millisecond

type Watcher struct {
	fw    *fsnotify.Watcher
	log   autocache.Logger
	delay time.Duration

	mu      sync.Mutex
	targets map[string][]autocache.Cache // cleaned listen path -> caches
	dirs    map[string]int               // watched dir -> listen paths in it
	timers  map[string]*time.Timer
	closed  bool

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

type Option func(*Watcher)

func WithLogger(l autocache.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// WithDelay sets the debounce window. d <= 0 keeps DefaultDelay.
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// New watches the listen path of every cache in reg. reg may be nil; use
// Watch to add caches later.
func New(reg *autocache.Registry, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("autocache/watch: %w", err)
	}
	w := &Watcher{
		fw:      fw,
		log:     autocache.NopLogger{},
		delay:   DefaultDelay,
		targets: make(map[string][]autocache.Cache),
		dirs:    make(map[string]int),
		timers:  make(map[string]*time.Timer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.loop()

	if reg != nil {
		for _, m := range reg.Managers() {
			for _, name := range m.Names() {
				c, _ := m.Cache(name)
				if c == nil || c.ListenPath() == "" {
					continue
				}
				if err := w.Watch(c); err != nil {
					_ = w.Close()
					return nil, err
				}
			}
		}
	}
	return w, nil
}

// Watch adds c under its listen path. The parent directory must exist; the
// file itself may not yet.
func (w *Watcher) Watch(c autocache.Cache) error {
	lp := c.ListenPath()
	if lp == "" {
		return nil
	}
	path, err := filepath.Abs(lp)
	if err != nil {
		return fmt.Errorf("autocache/watch: %s: %w", lp, err)
	}
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("autocache/watch: watcher closed")
	}
	if _, seen := w.targets[path]; !seen {
		if w.dirs[dir] == 0 {
			if err := w.fw.Add(dir); err != nil {
				return fmt.Errorf("autocache/watch: watch %s: %w", dir, err)
			}
		}
		w.dirs[dir]++
	}
	w.targets[path] = append(w.targets[path], c)
	w.log.Info("watching listen path", autocache.Fields{"cache": c.Name(), "path": path})
	return nil
}

// Paths returns the watched listen paths, sorted.
func (w *Watcher) Paths() []string {
	w.mu.Lock()
	out := make([]string, 0, len(w.targets))
	for p := range w.targets {
		out = append(out, p)
	}
	w.mu.Unlock()
	sort.Strings(out)
	return out
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Chmod) {
				continue
			}
			w.log.Debug("listen path event", autocache.Fields{"path": ev.Name, "op": ev.Op.String()})
			w.schedule(filepath.Clean(ev.Name))
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("listen path watch error", autocache.Fields{"err": err.Error()})
		}
	}
}

// schedule (re)arms the purge timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if _, ok := w.targets[path]; !ok {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Reset(w.delay)
		return
	}
	w.timers[path] = time.AfterFunc(w.delay, func() { w.fire(path) })
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	delete(w.timers, path)
	if w.closed {
		w.mu.Unlock()
		return
	}
	caches := append([]autocache.Cache(nil), w.targets[path]...)
	w.mu.Unlock()

	for _, c := range caches {
		purged := c.Engine().Len()
		c.Engine().Purge()
		w.log.Info("cache purged", autocache.Fields{"cache": c.Name(), "path": path, "entries": purged})
	}
}

// Close stops watching. Pending purges are dropped.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		for p, t := range w.timers {
			t.Stop()
			delete(w.timers, p)
		}
		w.mu.Unlock()

		close(w.done)
		err = w.fw.Close()
		w.wg.Wait()
	})
	return err
}
