package media

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/yusiwen/rtsp4k/models"
)

type FFmpegConfig struct {
	Binary       string
	ProbeTimeout time.Duration

	// LogDir receives one rotating ffmpeg-<route>.log per publisher.
	// Empty discards ffmpeg output.
	LogDir        string
	LogMaxSize    int // MB
	LogMaxBackups int
	LogMaxAge     int // days
	LogCompress   bool
}

func (c FFmpegConfig) binary() string {
	if c.Binary == "" {
		return "ffmpeg"
	}
	return c.Binary
}

func (c FFmpegConfig) probeTimeout() time.Duration {
	if c.ProbeTimeout <= 0 {
		return 10 * time.Second
	}
	return c.ProbeTimeout
}

func (c FFmpegConfig) logWriter(route string) io.WriteCloser {
	if c.LogDir == "" {
		return nopWriteCloser{io.Discard}
	}
	fn := fmt.Sprintf("ffmpeg-%s.log", strings.NewReplacer("/", "_", " ", "-").Replace(route))
	return &lumberjack.Logger{
		Filename:   filepath.Join(c.LogDir, fn),
		MaxSize:    c.LogMaxSize,
		MaxBackups: c.LogMaxBackups,
		MaxAge:     c.LogMaxAge,
		Compress:   c.LogCompress,
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// inputArgs are the demuxer options placed before -i for an input.
func inputArgs(input models.InputDescriptor) ffmpeg.KwArgs {
	switch input.Kind {
	case models.InputDevice:
		return ffmpeg.KwArgs{"f": "v4l2"}
	case models.InputNetwork:
		if strings.HasPrefix(input.Value, "rtsp://") || strings.HasPrefix(input.Value, "rtsps://") {
			return ffmpeg.KwArgs{"rtsp_transport": "tcp"}
		}
		return ffmpeg.KwArgs{}
	}
	if input.IsImage() {
		return ffmpeg.KwArgs{"loop": "1", "re": ""}
	}
	return ffmpeg.KwArgs{"stream_loop": "-1", "re": ""}
}

func probeArgs(input models.InputDescriptor) ffmpeg.KwArgs {
	kw := inputArgs(input)
	delete(kw, "re")
	delete(kw, "loop")
	delete(kw, "stream_loop")
	return kw
}

// sourceArgs decodes input into raw RGBA frames on stdout.
func sourceArgs(input models.InputDescriptor) []string {
	return ffmpeg.Input(input.Value, inputArgs(input)).
		Output("pipe:1", ffmpeg.KwArgs{"f": "rawvideo", "pix_fmt": "rgba", "an": ""}).
		GlobalArgs("-hide_banner", "-nostats", "-nostdin", "-loglevel", "error").
		GetArgs()
}

// publisherArgs reads raw RGBA frames from stdin and pushes H.264 over RTSP.
func publisherArgs(p PublishParams) []string {
	return ffmpeg.Input("pipe:0", ffmpeg.KwArgs{
		"f":         "rawvideo",
		"pix_fmt":   "rgba",
		"s":         fmt.Sprintf("%dx%d", p.Width, p.Height),
		"framerate": strconv.Itoa(p.FPS),
	}).
		Output(p.URL, ffmpeg.KwArgs{
			"c:v":            "libx264",
			"preset":         p.Options.SpeedPreset,
			"tune":           "zerolatency",
			"b:v":            fmt.Sprintf("%dk", p.Options.BitrateKbps),
			"g":              strconv.Itoa(p.Options.GOP(p.FPS)),
			"profile:v":      p.Options.Profile,
			"pix_fmt":        "yuv420p",
			"f":              "rtsp",
			"rtsp_transport": "tcp",
		}).
		GlobalArgs("-hide_banner", "-nostats", "-nostdin", "-loglevel", "warning").
		GetArgs()
}

type probeInfo struct {
	Width  int
	Height int
	FPS    float64
}

type probeResult struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
}

func parseProbe(data string) (probeInfo, error) {
	var res probeResult
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return probeInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	for _, s := range res.Streams {
		if s.CodecType != "video" {
			continue
		}
		fps := parseRate(s.AvgFrameRate)
		if fps <= 0 {
			fps = parseRate(s.RFrameRate)
		}
		return probeInfo{Width: s.Width, Height: s.Height, FPS: fps}, nil
	}
	return probeInfo{}, fmt.Errorf("no video stream found")
}

// parseRate reads "30000/1001" or "25" style rates; unknown rates are 0.
func parseRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// tailBuffer keeps the last bytes written to it, for error reports.
type tailBuffer struct {
	mu   sync.Mutex
	buf  []byte
	size int
}

func newTailBuffer(size int) *tailBuffer {
	return &tailBuffer{size: size}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.size; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
