package models

import (
	"path/filepath"
	"strings"
)

type InputKind int

const (
	InputFile InputKind = iota
	InputDevice
	InputNetwork
)

func (k InputKind) String() string {
	return [...]string{"file", "device", "network"}[k]
}

// InputDescriptor is a classified relay source. Owned inputs live in the
// upload directory and are deleted when their route is removed.
type InputDescriptor struct {
	Value string
	Kind  InputKind
	Owned bool
}

func ParseInput(value, dataDir string) InputDescriptor {
	d := InputDescriptor{Value: value, Kind: InputFile}
	switch {
	case strings.Contains(value, "://"):
		d.Kind = InputNetwork
	case strings.HasPrefix(value, "/dev/"):
		d.Kind = InputDevice
	default:
		d.Owned = dataDir != "" && isWithin(dataDir, value)
	}
	return d
}

// IsImage reports whether a file input is a still picture.
func (d InputDescriptor) IsImage() bool {
	if d.Kind != InputFile {
		return false
	}
	switch strings.ToLower(filepath.Ext(d.Value)) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".gif", ".webp", ".tif", ".tiff":
		return true
	}
	return false
}

func isWithin(dir, file string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absFile, err := filepath.Abs(file)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absFile)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
