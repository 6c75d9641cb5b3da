//go:build !gst

package media

import "errors"

var ErrGstUnavailable = errors.New("gstreamer backend not compiled in, rebuild with -tags gst")

func NewGstPublisherOpener() (PublisherOpener, error) {
	return nil, ErrGstUnavailable
}
