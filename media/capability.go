package media

import (
	"context"
	"fmt"

	"github.com/yusiwen/rtsp4k/models"
)

// FrameSource yields decoded frames. ReadFrame returns an error wrapping
// io.EOF once the input is exhausted.
type FrameSource interface {
	ReadFrame() (*Frame, error)
	FPS() float64
	Size() (width, height int)
	Release() error
}

// FramePublisher encodes frames and pushes them to an RTSP endpoint.
type FramePublisher interface {
	PublishFrame(f *Frame) error
	Release() error
}

type SourceOpener interface {
	OpenSource(ctx context.Context, input models.InputDescriptor) (FrameSource, error)
}

type PublisherOpener interface {
	OpenPublisher(ctx context.Context, params PublishParams) (FramePublisher, error)
}

type PublishParams struct {
	Route   string
	URL     string
	Width   int
	Height  int
	FPS     int
	Options EncodingOptions
}

func (p PublishParams) Validate() error {
	if p.URL == "" {
		return fmt.Errorf("publish url is empty")
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", p.Width, p.Height)
	}
	if p.FPS <= 0 {
		return fmt.Errorf("invalid frame rate %d", p.FPS)
	}
	return p.Options.Validate()
}

// NewPublisherOpener selects the encoder backend by name.
func NewPublisherOpener(backend string, conf FFmpegConfig) (PublisherOpener, error) {
	switch backend {
	case "", "ffmpeg":
		return &FFmpegPublisherOpener{Config: conf}, nil
	case "gstreamer", "gst":
		return NewGstPublisherOpener()
	}
	return nil, fmt.Errorf("unknown encoder backend %q", backend)
}
