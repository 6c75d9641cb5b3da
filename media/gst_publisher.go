//go:build gst

package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/yusiwen/rtsp4k/log"
)

var gstInitOnce sync.Once

type gstPublisherOpener struct{}

func NewGstPublisherOpener() (PublisherOpener, error) {
	gstInitOnce.Do(func() { gst.Init(nil) })
	return gstPublisherOpener{}, nil
}

func gstPipeline(p PublishParams) string {
	return fmt.Sprintf("appsrc name=src is-live=true do-timestamp=true format=time "+
		"caps=video/x-raw,format=RGBA,width=%d,height=%d,framerate=%d/1 ! "+
		"videoconvert ! "+
		"x264enc speed-preset=%s bitrate=%d key-int-max=%d tune=zerolatency ! "+
		"video/x-h264,profile=%s ! "+
		"rtspclientsink location=%s",
		p.Width, p.Height, p.FPS,
		p.Options.SpeedPreset, p.Options.BitrateKbps, p.Options.GOP(p.FPS),
		p.Options.Profile,
		p.URL)
}

func (gstPublisherOpener) OpenPublisher(ctx context.Context, p PublishParams) (FramePublisher, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	pipeline, err := gst.NewPipelineFromString(gstPipeline(p))
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	elem, err := pipeline.GetElementByName("src")
	if err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("find appsrc: %w", err)
	}
	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("start pipeline: %w", err)
	}
	log.Debugf("gstreamer pipeline for %s playing", p.URL)
	return &gstPublisher{
		params:   p,
		pipeline: pipeline,
		src:      app.SrcFromElement(elem),
	}, nil
}

type gstPublisher struct {
	params   PublishParams
	pipeline *gst.Pipeline
	src      *app.Source

	releaseOnce sync.Once
}

func (g *gstPublisher) PublishFrame(f *Frame) error {
	w, h := f.Size()
	if w != g.params.Width || h != g.params.Height {
		return fmt.Errorf("frame size %dx%d does not match encoder %dx%d", w, h, g.params.Width, g.params.Height)
	}
	if ret := g.src.PushBuffer(gst.NewBufferFromBytes(f.packed())); ret != gst.FlowOK {
		return fmt.Errorf("appsrc push: %v", ret)
	}
	return nil
}

func (g *gstPublisher) Release() error {
	var err error
	g.releaseOnce.Do(func() {
		g.src.EndStream()
		err = g.pipeline.SetState(gst.StateNull)
	})
	return err
}
