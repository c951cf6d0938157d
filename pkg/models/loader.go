package models

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-facecam/internal/log"
)

// Ready describes a completed load.
type Ready struct {
	Source  string        `json:"source"`
	Bundles []string      `json:"bundles"`
	Elapsed time.Duration `json:"elapsed"`
}

// Observer receives load progress.
type Observer interface {
	LoadStarted(bundles []string)
	BundleLoaded(name string, elapsed time.Duration)
	LoadFinished(ready Ready, err error)
}

// Loader loads every net from one source, concurrently, exactly once.
type Loader struct {
	source   Source
	nets     []Net
	observer Observer

	once  sync.Once
	ready Ready
	err   error
}

// NewLoader creates a loader. obs may be nil.
func NewLoader(src Source, nets []Net, obs Observer) *Loader {
	return &Loader{source: src, nets: nets, observer: obs}
}

// LoadModels issues every bundle load at once and returns after all of
// them have settled. Any single failure fails the whole load with a
// *LoadError for the first bundle that failed; remaining loads see a
// cancelled context. There is no retry: later calls return the first
// outcome.
func (l *Loader) LoadModels(ctx context.Context) (Ready, error) {
	l.once.Do(func() {
		l.ready, l.err = l.load(ctx)
	})
	return l.ready, l.err
}

// Loaded reports whether every net is loaded.
func (l *Loader) Loaded() bool {
	if len(l.nets) == 0 {
		return false
	}
	for _, n := range l.nets {
		if !n.IsLoaded() {
			return false
		}
	}
	return true
}

func (l *Loader) load(ctx context.Context) (Ready, error) {
	if len(l.nets) == 0 {
		return Ready{}, ErrNoNets
	}

	names := make([]string, len(l.nets))
	for i, n := range l.nets {
		names[i] = n.Name()
	}
	logger := log.With("component", "models", "source", l.source.String())
	logger.Info("loading models", "bundles", names)
	if l.observer != nil {
		l.observer.LoadStarted(names)
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range l.nets {
		g.Go(func() error {
			t0 := time.Now()
			paths, err := l.source.Resolve(gctx, n.Files())
			if err != nil {
				return &LoadError{Bundle: n.Name(), Err: err}
			}
			if err := n.Load(gctx, paths); err != nil {
				return &LoadError{Bundle: n.Name(), Err: err}
			}
			elapsed := time.Since(t0)
			logger.Debug("bundle loaded", "bundle", n.Name(), "elapsed", elapsed)
			if l.observer != nil {
				l.observer.BundleLoaded(n.Name(), elapsed)
			}
			return nil
		})
	}

	err := g.Wait()
	ready := Ready{Source: l.source.String(), Elapsed: time.Since(start)}
	if err == nil {
		ready.Bundles = names
		logger.Info("models ready", "elapsed", ready.Elapsed)
	} else {
		logger.Error("model load failed", "error", err)
	}
	if l.observer != nil {
		l.observer.LoadFinished(ready, err)
	}
	return ready, err
}
