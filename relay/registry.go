package relay

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/yusiwen/rtsp4k/log"
	"github.com/yusiwen/rtsp4k/media"
	"github.com/yusiwen/rtsp4k/metrics"
	"github.com/yusiwen/rtsp4k/models"
)

// RouteStore persists route definitions. *models.Store implements it.
type RouteStore interface {
	Has(route string) bool
	Get(route string) (models.RouteDefinition, bool)
	Put(route, input string)
	Delete(route string)
	Routes() []string
	Save() error
}

type Config struct {
	Server     string
	DataDir    string
	Limit      Limit
	Encoding   media.EncodingOptions
	DefaultFPS int
	// MaxRelays caps concurrently open relays; 0 means unlimited.
	MaxRelays int
	// Console receives the status table after every change when set.
	Console io.Writer
	Metrics *metrics.Metrics
}

type entry struct {
	worker *Worker // nil when the relay never opened
	input  models.InputDescriptor
	failed models.StreamSession
}

func (e *entry) snapshot() models.StreamSession {
	if e.worker != nil {
		return e.worker.Snapshot()
	}
	return e.failed
}

// Registry maps route names to relay workers and keeps the route store
// in sync with them.
type Registry struct {
	conf       Config
	store      RouteStore
	sources    media.SourceOpener
	publishers media.PublisherOpener
	admission  *semaphore.Weighted

	// opLock serializes Add, Remove, Close and store writes.
	opLock sync.Mutex

	entriesLock sync.RWMutex
	entries     map[string]*entry
}

func NewRegistry(conf Config, store RouteStore, sources media.SourceOpener, publishers media.PublisherOpener) *Registry {
	if conf.Server == "" {
		conf.Server = DefaultServer
	}
	if conf.Limit == (Limit{}) {
		conf.Limit = DefaultLimit
	}
	if conf.Encoding == (media.EncodingOptions{}) {
		conf.Encoding = media.DefaultEncodingOptions()
	}
	r := &Registry{
		conf:       conf,
		store:      store,
		sources:    sources,
		publishers: publishers,
		entries:    make(map[string]*entry),
	}
	if conf.MaxRelays > 0 {
		r.admission = semaphore.NewWeighted(int64(conf.MaxRelays))
	}
	conf.Metrics.WatchSessions(r.StateCounts)
	return r
}

// Add opens and starts a relay for route. A relay that fails to open is
// reported through the returned snapshot (state Failed, empty url) with a
// nil error, and is neither kept live nor persisted.
func (r *Registry) Add(ctx context.Context, route, input string) (models.StreamSession, error) {
	route = NormalizeRoute(route)

	r.opLock.Lock()
	defer r.opLock.Unlock()

	prev := r.get(route)
	if prev != nil && prev.worker != nil {
		err := &DuplicateRouteError{Route: route}
		r.conf.Metrics.Operation("add", err)
		return models.StreamSession{}, err
	}
	if r.admission != nil && !r.admission.TryAcquire(1) {
		err := &CapacityError{Limit: r.conf.MaxRelays}
		r.conf.Metrics.Operation("add", err)
		return models.StreamSession{}, err
	}

	desc := models.ParseInput(input, r.conf.DataDir)
	w := NewWorker(WorkerConfig{
		Route:      route,
		Input:      desc,
		URL:        StreamURL(r.conf.Server, route),
		Limit:      r.conf.Limit,
		Encoding:   r.conf.Encoding,
		DefaultFPS: r.conf.DefaultFPS,
		Sources:    r.sources,
		Publishers: r.publishers,
		Metrics:    r.conf.Metrics,
	})
	if err := w.Open(ctx); err != nil {
		r.releaseSlot()
		log.Warnf("relay %s not started: %v", route, err)
		r.conf.Metrics.Operation("add", err)
		failed := w.Snapshot()
		r.replaceStale(route, prev, desc)
		r.put(route, &entry{input: desc, failed: failed})
		r.printStatus()
		return failed, nil
	}
	w.Start()

	if !r.store.Has(route) {
		r.store.Put(route, input)
		if err := r.store.Save(); err != nil {
			r.store.Delete(route)
			if serr := w.Stop(); serr != nil {
				log.Warnf("relay %s: %v", route, serr)
			}
			r.releaseSlot()
			perr := &PersistenceError{Route: route, Err: err}
			r.conf.Metrics.Operation("add", perr)
			return models.StreamSession{}, perr
		}
	}

	r.replaceStale(route, prev, desc)
	r.put(route, &entry{worker: w, input: desc})
	r.conf.Metrics.Operation("add", nil)
	log.Infof("relay %s added, now %d relays", route, r.Len())
	r.printStatus()
	return w.Snapshot(), nil
}

// Remove stops the relay of route, forgets it, drops its persisted
// definition and deletes an uploaded input. The remaining sessions are
// returned even when an error is.
//
// A route that only failed to open has no live session: its snapshot,
// persisted definition and upload are cleaned up all the same and
// RouteNotFoundError is returned.
func (r *Registry) Remove(route string) (map[string]models.StreamSession, error) {
	route = TrimRoute(route)

	r.opLock.Lock()
	defer r.opLock.Unlock()

	e := r.get(route)
	if e == nil {
		err := &RouteNotFoundError{Route: route}
		r.conf.Metrics.Operation("remove", err)
		return r.List(), err
	}
	if e.worker == nil {
		r.drop(route)
		errs := []error{&RouteNotFoundError{Route: route}}
		if r.store.Has(route) {
			errs = append(errs, r.forget(route))
		}
		errs = append(errs, r.removeUpload(route, e.input))
		err := errors.Join(errs...)
		r.conf.Metrics.Operation("remove", err)
		log.Infof("relay %s was not running, definition dropped", route)
		r.printStatus()
		return r.List(), err
	}

	if err := e.worker.Stop(); err != nil {
		log.Warnf("relay %s: %v", route, err)
	}
	r.drop(route)
	r.releaseSlot()
	r.conf.Metrics.Forget(route)

	err := errors.Join(r.forget(route), r.removeUpload(route, e.input))
	r.conf.Metrics.Operation("remove", err)
	log.Infof("relay %s removed, now %d relays", route, r.Len())
	r.printStatus()
	return r.List(), err
}

// List returns a snapshot of every known session.
func (r *Registry) List() map[string]models.StreamSession {
	r.entriesLock.RLock()
	entries := make(map[string]*entry, len(r.entries))
	for k, v := range r.entries {
		entries[k] = v
	}
	r.entriesLock.RUnlock()

	out := make(map[string]models.StreamSession, len(entries))
	for k, e := range entries {
		out[k] = e.snapshot()
	}
	return out
}

func (r *Registry) Len() int {
	r.entriesLock.RLock()
	defer r.entriesLock.RUnlock()
	return len(r.entries)
}

func (r *Registry) StateCounts() map[models.SessionState]int {
	counts := make(map[models.SessionState]int)
	for _, s := range r.List() {
		counts[s.State]++
	}
	return counts
}

// Recover starts a relay for every persisted route. Routes that fail stay
// persisted and are returned.
func (r *Registry) Recover(ctx context.Context) []string {
	var failed []string
	for _, route := range r.store.Routes() {
		if ctx.Err() != nil {
			break
		}
		def, ok := r.store.Get(route)
		if !ok {
			continue
		}
		s, err := r.Add(ctx, route, def.Input)
		if err != nil {
			log.Errorf("recover relay %s: %s", route, Describe(err))
			failed = append(failed, route)
			continue
		}
		if s.State == models.Failed {
			log.Errorf("recover relay %s: %s", route, s.Error)
			failed = append(failed, route)
		}
	}
	return failed
}

// Close stops every relay in parallel. Persisted definitions are kept.
func (r *Registry) Close() error {
	r.opLock.Lock()
	defer r.opLock.Unlock()

	r.entriesLock.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.entriesLock.Unlock()

	var g errgroup.Group
	for _, e := range entries {
		if e.worker == nil {
			continue
		}
		w := e.worker
		g.Go(w.Stop)
		r.releaseSlot()
	}
	return g.Wait()
}

func (r *Registry) get(route string) *entry {
	r.entriesLock.RLock()
	defer r.entriesLock.RUnlock()
	return r.entries[route]
}

func (r *Registry) put(route string, e *entry) {
	r.entriesLock.Lock()
	r.entries[route] = e
	r.entriesLock.Unlock()
}

func (r *Registry) drop(route string) {
	r.entriesLock.Lock()
	delete(r.entries, route)
	r.entriesLock.Unlock()
}

// forget deletes the persisted definition of route and flushes the store.
func (r *Registry) forget(route string) error {
	r.store.Delete(route)
	if err := r.store.Save(); err != nil {
		return &PersistenceError{Route: route, Err: err}
	}
	return nil
}

// removeUpload deletes input when the registry owns it. A file that is
// already gone is not an error.
func (r *Registry) removeUpload(route string, input models.InputDescriptor) error {
	if !input.Owned {
		return nil
	}
	if err := os.Remove(input.Value); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &ResourceCleanupError{Route: route, Path: input.Value, Err: err}
	}
	return nil
}

// replaceStale deletes the upload of a failed-open entry that a new Add
// of the same route is about to overwrite, unless the new input reuses it.
func (r *Registry) replaceStale(route string, prev *entry, next models.InputDescriptor) {
	if prev == nil || prev.worker != nil || prev.input.Value == next.Value {
		return
	}
	if err := r.removeUpload(route, prev.input); err != nil {
		log.Warnf("relay %s: %v", route, err)
	}
}

func (r *Registry) releaseSlot() {
	if r.admission != nil {
		r.admission.Release(1)
	}
}

func (r *Registry) printStatus() {
	if r.conf.Console != nil {
		r.PrintStatus(r.conf.Console)
	}
}
