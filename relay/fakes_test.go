package relay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yusiwen/rtsp4k/media"
	"github.com/yusiwen/rtsp4k/models"
)

type fakeSource struct {
	width, height int
	fps           float64

	// failAfter > 0 makes ReadFrame fail once that many frames were read.
	failAfter int
	readErr   error
	// gate, when set, must yield a value before each read completes.
	gate chan struct{}

	releaseErr error
	reads      atomic.Int64
	released   atomic.Int32
}

func (s *fakeSource) ReadFrame() (*media.Frame, error) {
	if s.gate != nil {
		<-s.gate
	} else {
		time.Sleep(time.Millisecond)
	}
	n := s.reads.Add(1)
	if s.failAfter > 0 && int(n) > s.failAfter {
		return nil, s.readErr
	}
	return media.NewFrame(s.width, s.height), nil
}

func (s *fakeSource) FPS() float64 { return s.fps }

func (s *fakeSource) Size() (int, int) { return s.width, s.height }

func (s *fakeSource) Release() error {
	s.released.Add(1)
	return s.releaseErr
}

type fakeSources struct {
	mu     sync.Mutex
	errs   map[string]error
	build  func(in models.InputDescriptor) *fakeSource
	opened []*fakeSource
}

func (f *fakeSources) OpenSource(ctx context.Context, in models.InputDescriptor) (media.FrameSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[in.Value]; err != nil {
		return nil, err
	}
	s := &fakeSource{width: 640, height: 480, fps: 25}
	if f.build != nil {
		s = f.build(in)
	}
	f.opened = append(f.opened, s)
	return s, nil
}

func (f *fakeSources) last() *fakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened[len(f.opened)-1]
}

type fakePublisher struct {
	params     media.PublishParams
	err        error
	releaseErr error

	mu        sync.Mutex
	sizes     [][2]int
	published atomic.Int64
	released  atomic.Int32
}

func (p *fakePublisher) PublishFrame(f *media.Frame) error {
	if p.err != nil {
		return p.err
	}
	w, h := f.Size()
	p.mu.Lock()
	p.sizes = append(p.sizes, [2]int{w, h})
	p.mu.Unlock()
	p.published.Add(1)
	return nil
}

func (p *fakePublisher) Release() error {
	p.released.Add(1)
	return p.releaseErr
}

type fakePublishers struct {
	mu     sync.Mutex
	err    error
	build  func(params media.PublishParams) *fakePublisher
	opened []*fakePublisher
}

func (f *fakePublishers) OpenPublisher(ctx context.Context, params media.PublishParams) (media.FramePublisher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p := &fakePublisher{}
	if f.build != nil {
		p = f.build(params)
	}
	p.params = params
	f.opened = append(f.opened, p)
	return p, nil
}

func (f *fakePublishers) last() *fakePublisher {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened[len(f.opened)-1]
}

// flakyStore fails Save while failSave is set.
type flakyStore struct {
	*models.Store
	failSave atomic.Bool
}

var errDiskFull = errors.New("disk full")

func (s *flakyStore) Save() error {
	if s.failSave.Load() {
		return errDiskFull
	}
	return s.Store.Save()
}
