package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yusiwen/rtsp4k/log"
	"github.com/yusiwen/rtsp4k/media"
	"github.com/yusiwen/rtsp4k/metrics"
	"github.com/yusiwen/rtsp4k/models"
)

const fallbackFPS = 30

type WorkerConfig struct {
	Route      string
	Input      models.InputDescriptor
	URL        string
	Limit      Limit
	Encoding   media.EncodingOptions
	DefaultFPS int
	Sources    media.SourceOpener
	Publishers media.PublisherOpener
	Metrics    *metrics.Metrics
}

// Worker relays frames from one source to one publisher on its own goroutine.
type Worker struct {
	conf   WorkerConfig
	id     string
	logger *log.Logger

	lock       sync.Mutex
	state      models.SessionState
	opened     bool
	started    bool
	released   bool
	width      int
	height     int
	fps        int
	resized    bool
	lastErr    error
	releaseErr error
	startedAt  *time.Time
	source     media.FrameSource
	publisher  media.FramePublisher

	stopping atomic.Bool
	done     chan struct{}
}

func NewWorker(conf WorkerConfig) *Worker {
	if conf.Limit == (Limit{}) {
		conf.Limit = DefaultLimit
	}
	return &Worker{
		conf:   conf,
		id:     uuid.NewString(),
		logger: log.NewLogger(conf.Route, log.RouteId),
		state:  models.Starting,
		done:   make(chan struct{}),
	}
}

func (w *Worker) Route() string {
	return w.conf.Route
}

func (w *Worker) State() models.SessionState {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.state
}

// Done is closed when the relay goroutine has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Open acquires the source, fits the frame size and acquires the publisher.
// On failure everything acquired so far is released and the worker is Failed.
func (w *Worker) Open(ctx context.Context) error {
	w.lock.Lock()
	if w.state != models.Starting {
		w.lock.Unlock()
		return fmt.Errorf("worker for %q already opened", w.conf.Route)
	}
	w.lock.Unlock()

	src, err := w.conf.Sources.OpenSource(ctx, w.conf.Input)
	if err != nil {
		return w.openFailed("source", err)
	}

	fps := int(src.FPS())
	if fps <= 0 {
		fps = w.conf.DefaultFPS
	}
	if fps <= 0 {
		fps = fallbackFPS
	}
	srcW, srcH := src.Size()
	width, height, resized := Fit(srcW, srcH, w.conf.Limit)
	if width <= 0 || height <= 0 {
		w.releaseQuietly(src)
		return w.openFailed("size", fmt.Errorf("source frame %dx%d cannot be encoded (fits to %dx%d)", srcW, srcH, width, height))
	}

	pub, err := w.conf.Publishers.OpenPublisher(ctx, media.PublishParams{
		Route:   w.conf.Route,
		URL:     w.conf.URL,
		Width:   width,
		Height:  height,
		FPS:     fps,
		Options: w.conf.Encoding,
	})
	if err != nil {
		w.releaseQuietly(src)
		return w.openFailed("publisher", err)
	}

	now := time.Now()
	w.lock.Lock()
	w.source = src
	w.publisher = pub
	w.width, w.height, w.fps, w.resized = width, height, fps, resized
	w.opened = true
	w.startedAt = &now
	w.state = models.Running
	w.lock.Unlock()

	w.logger.Infof("opened %s (%dx%d) -> %s (%dx%d@%d), run %s", w.conf.Input.Value, srcW, srcH, w.conf.URL, width, height, fps, w.id)
	return nil
}

func (w *Worker) openFailed(stage string, err error) error {
	w.lock.Lock()
	w.state = models.Failed
	w.lastErr = err
	w.lock.Unlock()
	w.conf.Metrics.RelayFailed(w.conf.Route, "open_"+stage)
	return &OpenError{Route: w.conf.Route, Stage: stage, Err: err}
}

func (w *Worker) releaseQuietly(src media.FrameSource) {
	if err := src.Release(); err != nil {
		w.logger.Warn("release source after failed open: ", err)
	}
}

// Start launches the relay loop of an opened worker. Later calls do nothing.
func (w *Worker) Start() {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.started || w.state != models.Running {
		return
	}
	w.started = true
	go w.run()
}

func (w *Worker) run() {
	defer close(w.done)

	stage, err := w.loop()
	releaseErr := w.release()

	w.lock.Lock()
	if err != nil {
		w.state = models.Failed
		w.lastErr = err
	} else {
		w.state = models.Stopped
	}
	w.lock.Unlock()

	if err != nil {
		w.conf.Metrics.RelayFailed(w.conf.Route, stage)
		w.logger.Errorf("%s failed: %v", stage, err)
	} else {
		w.logger.Info("stopped")
	}
	if releaseErr != nil {
		w.logger.Warn(releaseErr)
	}
}

// loop checks the stop flag once per frame; a blocked read or publish
// finishes before the flag is seen.
func (w *Worker) loop() (string, error) {
	for !w.stopping.Load() {
		frame, err := w.source.ReadFrame()
		if err != nil {
			return "read", err
		}
		if w.resized {
			frame = media.Resize(frame, w.width, w.height)
		}
		if err := w.publisher.PublishFrame(frame); err != nil {
			return "publish", err
		}
		w.conf.Metrics.FrameRelayed(w.conf.Route, w.resized)
	}
	return "", nil
}

// release frees the source then the publisher. Both are always attempted.
func (w *Worker) release() error {
	w.lock.Lock()
	if w.released {
		w.lock.Unlock()
		return nil
	}
	w.released = true
	src, pub := w.source, w.publisher
	w.lock.Unlock()

	var errs []error
	if src != nil {
		if err := src.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release source: %w", err))
		}
	}
	if pub != nil {
		if err := pub.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release publisher: %w", err))
		}
	}
	err := errors.Join(errs...)
	w.lock.Lock()
	w.releaseErr = err
	w.lock.Unlock()
	return err
}

// Stop asks the loop to exit and waits for it. A worker that was opened
// but never started releases its capabilities here. Stopping a stopped
// or failed worker does nothing.
func (w *Worker) Stop() error {
	w.lock.Lock()
	if !w.started {
		if w.state != models.Running {
			w.lock.Unlock()
			return nil
		}
		w.state = models.Stopping
		w.lock.Unlock()

		err := w.release()
		w.lock.Lock()
		w.state = models.Stopped
		w.lock.Unlock()
		return err
	}
	if w.state == models.Running {
		w.state = models.Stopping
	}
	w.lock.Unlock()

	w.stopping.Store(true)
	<-w.done

	w.lock.Lock()
	defer w.lock.Unlock()
	return w.releaseErr
}

func (w *Worker) Snapshot() models.StreamSession {
	w.lock.Lock()
	defer w.lock.Unlock()
	s := models.StreamSession{
		ID:        w.id,
		Route:     w.conf.Route,
		Input:     w.conf.Input.Value,
		State:     w.state,
		Width:     w.width,
		Height:    w.height,
		Resized:   w.resized,
		FPS:       w.fps,
		StartedAt: w.startedAt,
	}
	if w.opened {
		s.URL = w.conf.URL
	}
	if w.lastErr != nil {
		s.Error = w.lastErr.Error()
	}
	return s
}
