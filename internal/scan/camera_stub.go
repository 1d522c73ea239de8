//go:build !gst

package scan

import (
	"errors"
	"image/color"
)

// CameraAvailable reports whether this build can capture from a camera.
const CameraAvailable = false

// ErrNoCamera is returned when the binary was built without GStreamer.
var ErrNoCamera = errors.New("camera capture not compiled in (build with -tags gst)")

// CameraSource is unavailable in this build.
type CameraSource struct{}

// NewCameraSource always fails without the gst build tag.
func NewCameraSource(device string, width, height int) (*CameraSource, error) {
	return nil, ErrNoCamera
}

func (*CameraSource) Open() error { return ErrNoCamera }
func (*CameraSource) Close() error { return nil }
func (*CameraSource) Ready() bool { return false }
func (*CameraSource) Dimensions() (int, int) { return 0, 0 }
func (*CameraSource) Pixels(dst []color.RGBA) error { return ErrNoCamera }
func (*CameraSource) Rotation() int { return 0 }
