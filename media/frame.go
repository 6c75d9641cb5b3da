package media

import (
	"image"
	"time"

	"golang.org/x/image/draw"
)

// Frame is one decoded RGBA picture.
type Frame struct {
	Image     *image.RGBA
	Seq       uint64
	Timestamp time.Time
}

func NewFrame(width, height int) *Frame {
	return &Frame{
		Image:     image.NewRGBA(image.Rect(0, 0, width, height)),
		Timestamp: time.Now(),
	}
}

func (f *Frame) Size() (int, int) {
	b := f.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Resize scales f to width x height with bilinear interpolation. A frame
// already at the requested size is returned as is.
func Resize(f *Frame, width, height int) *Frame {
	b := f.Image.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return f
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), f.Image, b, draw.Src, nil)
	return &Frame{Image: dst, Seq: f.Seq, Timestamp: f.Timestamp}
}

// packed returns the pixel bytes without row padding.
func (f *Frame) packed() []byte {
	w, h := f.Size()
	rowLen := w * 4
	if f.Image.Stride == rowLen {
		return f.Image.Pix[:rowLen*h]
	}
	out := make([]byte, 0, rowLen*h)
	for y := 0; y < h; y++ {
		off := y * f.Image.Stride
		out = append(out, f.Image.Pix[off:off+rowLen]...)
	}
	return out
}
