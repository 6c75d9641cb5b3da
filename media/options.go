package media

import (
	"fmt"
	"slices"
)

var (
	SpeedPresets = []string{"ultrafast", "superfast", "veryfast", "faster", "fast", "medium", "slow", "slower", "veryslow", "placebo"}
	Profiles     = []string{"baseline", "main", "high"}
)

// EncodingOptions configures the H.264 encoder of a publisher.
// KeyframeInterval 0 means two seconds worth of frames.
type EncodingOptions struct {
	BitrateKbps      int
	SpeedPreset      string
	KeyframeInterval int
	Profile          string
}

func DefaultEncodingOptions() EncodingOptions {
	return EncodingOptions{
		BitrateKbps: 600,
		SpeedPreset: "ultrafast",
		Profile:     "baseline",
	}
}

func (o EncodingOptions) GOP(fps int) int {
	if o.KeyframeInterval > 0 {
		return o.KeyframeInterval
	}
	return 2 * fps
}

func (o EncodingOptions) Validate() error {
	if o.BitrateKbps <= 0 {
		return fmt.Errorf("invalid bitrate %d kbps", o.BitrateKbps)
	}
	if o.KeyframeInterval < 0 {
		return fmt.Errorf("invalid keyframe interval %d", o.KeyframeInterval)
	}
	if !slices.Contains(SpeedPresets, o.SpeedPreset) {
		return fmt.Errorf("unknown speed preset %q", o.SpeedPreset)
	}
	if !slices.Contains(Profiles, o.Profile) {
		return fmt.Errorf("unknown profile %q", o.Profile)
	}
	return nil
}
