package relay

// Limit is the largest frame the encoder accepts.
type Limit struct {
	Width  int
	Height int
}

var DefaultLimit = Limit{Width: 3840, Height: 2160}

// Fit computes the encoder frame size for a width x height source.
//
// Sources larger in area than the limit are scaled to exactly the limit.
// Otherwise each dimension that is not a multiple of 4 is lowered to
// 4*(v/4-1), one step below the nearest multiple. resized is always true.
func Fit(width, height int, limit Limit) (w, h int, resized bool) {
	if width*height > limit.Width*limit.Height {
		return limit.Width, limit.Height, true
	}
	return align4(width), align4(height), true
}

func align4(v int) int {
	if v%4 == 0 {
		return v
	}
	return 4 * (v/4 - 1)
}
