// Package scan runs the camera decode loop that turns frames into QR payloads.
package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg" // register JPEG frames
	_ "image/png"  // register PNG frames
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FrameSource supplies raster frames from a camera-like device.
//
// Methods are only called by the owning Cycle, serialised under its lock.
type FrameSource interface {
	// Open starts frame delivery.
	Open() error
	// Close releases the device. Called at most once per successful Open.
	Close() error
	// Ready reports whether the device is still delivering frames.
	Ready() bool
	// Dimensions returns the size of the current frame. Width is 0 until the
	// first frame arrives.
	Dimensions() (width, height int)
	// Pixels copies the current frame into dst, which holds width*height pixels.
	Pixels(dst []color.RGBA) error
	// Rotation returns the clockwise rotation of the frame in degrees.
	Rotation() int
}

// Permission gates access to the camera on platforms that require consent.
type Permission interface {
	Request(ctx context.Context) (bool, error)
}

// PermissionFunc adapts a function to Permission.
type PermissionFunc func(ctx context.Context) (bool, error)

// Request calls f.
func (f PermissionFunc) Request(ctx context.Context) (bool, error) { return f(ctx) }

// AllowAll grants access without asking. Desktop capture needs no consent.
var AllowAll Permission = PermissionFunc(func(context.Context) (bool, error) { return true, nil })

var (
	// ErrFrameSize is returned by Pixels when dst does not match the frame.
	ErrFrameSize = errors.New("frame buffer size mismatch")
	// ErrNotOpen is returned when a closed source is read.
	ErrNotOpen = errors.New("frame source not open")
	// ErrNoFrames is returned when an image source has nothing to play.
	ErrNoFrames = errors.New("no frames")
)

// ImageSource plays still images as a frame sequence, advancing one image per
// Pixels call and looping at the end. It stands in for a camera on machines
// without one.
type ImageSource struct {
	mu     sync.Mutex
	frames []*image.RGBA
	pos    int
	open   bool
}

// NewImageSource builds a source from decoded images.
func NewImageSource(imgs ...image.Image) *ImageSource {
	s := &ImageSource{}
	for _, img := range imgs {
		s.frames = append(s.frames, toRGBA(img))
	}
	return s
}

// LoadImageSource reads every PNG or JPEG file matching pattern, in name order.
func LoadImageSource(pattern string) (*ImageSource, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob frames: %w", err)
	}
	sort.Strings(paths)

	var imgs []image.Image
	for _, p := range paths {
		img, err := readImage(p)
		if err != nil {
			return nil, err
		}
		imgs = append(imgs, img)
	}
	if len(imgs) == 0 {
		return nil, fmt.Errorf("load frames %q: %w", pattern, ErrNoFrames)
	}
	return NewImageSource(imgs...), nil
}

func readImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Open starts playback from the first image.
func (s *ImageSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return ErrNoFrames
	}
	s.open = true
	s.pos = 0
	return nil
}

// Close stops playback.
func (s *ImageSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

// Ready reports whether the source is open.
func (s *ImageSource) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Dimensions returns the size of the current image.
func (s *ImageSource) Dimensions() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, 0
	}
	b := s.frames[s.pos].Bounds()
	return b.Dx(), b.Dy()
}

// Pixels copies the current image into dst and advances to the next one.
func (s *ImageSource) Pixels(dst []color.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	frame := s.frames[s.pos]
	b := frame.Bounds()
	if len(dst) != b.Dx()*b.Dy() {
		return ErrFrameSize
	}
	for i := range dst {
		j := i * 4
		dst[i] = color.RGBA{R: frame.Pix[j], G: frame.Pix[j+1], B: frame.Pix[j+2], A: frame.Pix[j+3]}
	}
	s.pos = (s.pos + 1) % len(s.frames)
	return nil
}

// Rotation is always 0 for still images.
func (s *ImageSource) Rotation() int { return 0 }
