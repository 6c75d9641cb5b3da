package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/yusiwen/rtsp4k/log"
	"github.com/yusiwen/rtsp4k/models"
)

type FFmpegSourceOpener struct {
	Config FFmpegConfig
}

// OpenSource probes the input and starts a decoder process. ctx bounds
// the probe only; the decoder lives until Release.
func (o *FFmpegSourceOpener) OpenSource(ctx context.Context, input models.InputDescriptor) (FrameSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := ffmpeg.ProbeWithTimeout(input.Value, o.Config.probeTimeout(), probeArgs(input))
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", input.Value, err)
	}
	info, err := parseProbe(out)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", input.Value, err)
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("probe %s: invalid frame size %dx%d", input.Value, info.Width, info.Height)
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, o.Config.binary(), sourceArgs(input)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	stderr := newTailBuffer(2048)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start decoder: %w", err)
	}
	log.Debugf("decoder for %s started: %s", input.Value, cmd.String())

	return &ffmpegSource{
		cmd:    cmd,
		cancel: cancel,
		reader: bufio.NewReaderSize(stdout, info.Width*info.Height*4),
		stderr: stderr,
		info:   info,
	}, nil
}

type ffmpegSource struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	reader *bufio.Reader
	stderr *tailBuffer
	info   probeInfo
	seq    uint64

	releaseOnce sync.Once
}

func (s *ffmpegSource) ReadFrame() (*Frame, error) {
	f := NewFrame(s.info.Width, s.info.Height)
	if _, err := io.ReadFull(s.reader, f.Image.Pix); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if msg := s.stderr.String(); msg != "" {
				return nil, fmt.Errorf("%w: %s", io.EOF, msg)
			}
			return nil, io.EOF
		}
		return nil, err
	}
	s.seq++
	f.Seq = s.seq
	f.Timestamp = time.Now()
	return f, nil
}

func (s *ffmpegSource) FPS() float64 {
	return s.info.FPS
}

func (s *ffmpegSource) Size() (int, int) {
	return s.info.Width, s.info.Height
}

func (s *ffmpegSource) Release() error {
	s.releaseOnce.Do(func() {
		s.cancel()
		// killed on purpose, the exit status carries no information
		s.cmd.Wait()
	})
	return nil
}
