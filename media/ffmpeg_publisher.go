package media

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/yusiwen/rtsp4k/log"
)

const publisherStopTimeout = 2 * time.Second

type FFmpegPublisherOpener struct {
	Config FFmpegConfig
}

func (o *FFmpegPublisherOpener) OpenPublisher(ctx context.Context, p PublishParams) (FramePublisher, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(o.Config.binary(), publisherArgs(p)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	out := o.Config.logWriter(p.Route)
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Start(); err != nil {
		out.Close()
		return nil, fmt.Errorf("start encoder: %w", err)
	}
	log.Debugf("encoder for %s started: %s", p.URL, cmd.String())

	pub := &ffmpegPublisher{
		params: p,
		cmd:    cmd,
		stdin:  stdin,
		out:    out,
		done:   make(chan struct{}),
	}
	go func() {
		pub.exitErr = cmd.Wait()
		close(pub.done)
	}()
	return pub, nil
}

type ffmpegPublisher struct {
	params PublishParams
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	out    io.WriteCloser

	done    chan struct{}
	exitErr error

	releaseOnce sync.Once
}

func (p *ffmpegPublisher) PublishFrame(f *Frame) error {
	w, h := f.Size()
	if w != p.params.Width || h != p.params.Height {
		return fmt.Errorf("frame size %dx%d does not match encoder %dx%d", w, h, p.params.Width, p.params.Height)
	}
	select {
	case <-p.done:
		return fmt.Errorf("encoder exited: %v", p.exitErr)
	default:
	}
	if _, err := p.stdin.Write(f.packed()); err != nil {
		return fmt.Errorf("write frame to encoder: %w", err)
	}
	return nil
}

// Release closes stdin so ffmpeg can flush, then kills it after a grace period.
func (p *ffmpegPublisher) Release() error {
	var err error
	p.releaseOnce.Do(func() {
		p.stdin.Close()
		select {
		case <-p.done:
		case <-time.After(publisherStopTimeout):
			if kerr := p.cmd.Process.Kill(); kerr != nil {
				err = fmt.Errorf("kill encoder: %w", kerr)
			}
			<-p.done
		}
		p.out.Close()
	})
	return err
}
