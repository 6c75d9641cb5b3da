//go:build gst

package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGstPipeline(t *testing.T) {
	s := gstPipeline(PublishParams{
		URL:     "rtsp://localhost:8554/cam1",
		Width:   1280,
		Height:  720,
		FPS:     30,
		Options: DefaultEncodingOptions(),
	})
	assert.Contains(t, s, "width=1280,height=720,framerate=30/1")
	assert.Contains(t, s, "x264enc speed-preset=ultrafast bitrate=600 key-int-max=60")
	assert.Contains(t, s, "video/x-h264,profile=baseline")
	assert.Contains(t, s, "rtspclientsink location=rtsp://localhost:8554/cam1")
}
