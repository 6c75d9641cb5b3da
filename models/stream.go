package models

import (
	"fmt"
	"time"
)

type SessionState int

const (
	Starting SessionState = iota
	Running
	Failed
	Stopping
	Stopped
)

func (s SessionState) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Failed:
		return "failed"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SessionState) UnmarshalText(b []byte) error {
	for st := Starting; st <= Stopped; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", b)
}

var SessionStates = []SessionState{Starting, Running, Failed, Stopping, Stopped}

// StreamSession is a point-in-time view of one relay. URL is empty when
// the relay never opened.
type StreamSession struct {
	ID        string       `json:"id"`
	Route     string       `json:"route"`
	Input     string       `json:"input"`
	State     SessionState `json:"state"`
	URL       string       `json:"url"`
	Width     int          `json:"width,omitempty"`
	Height    int          `json:"height,omitempty"`
	Resized   bool         `json:"resized"`
	FPS       int          `json:"fps,omitempty"`
	Error     string       `json:"error,omitempty"`
	StartedAt *time.Time   `json:"startedAt,omitempty"`
}

func (s StreamSession) Ok() bool {
	return s.State == Running
}
