package media

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResize(t *testing.T) {
	f := NewFrame(8, 6)
	f.Seq = 9
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			f.Image.SetRGBA(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}

	r := Resize(f, 4, 4)
	w, h := r.Size()
	assert.Equal(t, 4, w)
	assert.Equal(t, 4, h)
	assert.Equal(t, uint64(9), r.Seq)
	assert.Equal(t, color.RGBA{R: 200, G: 10, B: 10, A: 255}, r.Image.RGBAAt(2, 2))
}

func TestResizeSameSize(t *testing.T) {
	f := NewFrame(4, 4)
	assert.Same(t, f, Resize(f, 4, 4))
}

func TestPacked(t *testing.T) {
	f := NewFrame(3, 2)
	assert.Len(t, f.packed(), 3*2*4)

	parent := image.NewRGBA(image.Rect(0, 0, 5, 5))
	parent.SetRGBA(1, 1, color.RGBA{R: 1, G: 2, B: 3, A: 4})
	sub := &Frame{Image: parent.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)}
	p := sub.packed()
	assert.Len(t, p, 2*2*4)
	assert.Equal(t, []byte{1, 2, 3, 4}, p[:4])
}
