//go:build gst

package scan

import (
	"fmt"
	"image/color"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// CameraAvailable reports whether this build can capture from a camera.
const CameraAvailable = true

// CameraSource captures RGBA frames from a V4L2 device through GStreamer.
//
// Pipeline: v4l2src → videoconvert → videoscale → capsfilter(RGBA) → appsink.
// The appsink keeps only the latest frame.
type CameraSource struct {
	Device string
	Width  int
	Height int

	mu       sync.Mutex
	pipeline *gst.Pipeline
	frame    []byte
	frameW   int
	frameH   int
	failed   bool
	stopBus  chan struct{}
}

// NewCameraSource returns a source for device (e.g. /dev/video0) scaled to
// width×height.
func NewCameraSource(device string, width, height int) (*CameraSource, error) {
	return &CameraSource{Device: device, Width: width, Height: height}, nil
}

// Open builds the pipeline and sets it playing.
func (c *CameraSource) Open() error {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return fmt.Errorf("failed to create v4l2src: %w", err)
	}
	if c.Device != "" {
		src.SetProperty("device", c.Device)
	}
	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return fmt.Errorf("failed to create videoconvert: %w", err)
	}
	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return fmt.Errorf("failed to create videoscale: %w", err)
	}
	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return fmt.Errorf("failed to create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(
		fmt.Sprintf("video/x-raw,format=RGBA,width=%d,height=%d", c.Width, c.Height)))

	sink, err := app.NewAppSink()
	if err != nil {
		return fmt.Errorf("failed to create appsink: %w", err)
	}
	sink.SetProperty("sync", false)
	sink.SetProperty("max-buffers", 1)
	sink.SetProperty("drop", true)
	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: c.onSample,
	})

	pipeline.AddMany(src, converter, scaler, capsfilter, sink.Element)
	if err := gst.ElementLinkMany(src, converter, scaler, capsfilter, sink.Element); err != nil {
		pipeline.SetState(gst.StateNull)
		return fmt.Errorf("failed to link camera pipeline: %w", err)
	}
	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		// A partial transition may already hold the device.
		pipeline.SetState(gst.StateNull)
		return fmt.Errorf("failed to start camera pipeline: %w", err)
	}

	c.mu.Lock()
	c.pipeline = pipeline
	c.failed = false
	c.frame = nil
	c.frameW, c.frameH = 0, 0
	c.stopBus = make(chan struct{})
	stop := c.stopBus
	c.mu.Unlock()

	go c.watchBus(pipeline, stop)
	return nil
}

// watchBus marks the source failed on EOS or a pipeline error, e.g. when the
// device is unplugged.
func (c *CameraSource) watchBus(pipeline *gst.Pipeline, stop chan struct{}) {
	bus := pipeline.GetPipelineBus()
	for {
		select {
		case <-stop:
			return
		default:
		}
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS, gst.MessageError:
			c.mu.Lock()
			c.failed = true
			c.mu.Unlock()
			return
		}
	}
}

func (c *CameraSource) onSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	need := c.Width * c.Height * 4
	if len(data) < need {
		buffer.Unmap()
		return gst.FlowOK
	}

	c.mu.Lock()
	if len(c.frame) != need {
		c.frame = make([]byte, need)
	}
	copy(c.frame, data[:need])
	c.frameW, c.frameH = c.Width, c.Height
	c.mu.Unlock()

	buffer.Unmap()
	return gst.FlowOK
}

// Close stops the pipeline and drops the frame.
func (c *CameraSource) Close() error {
	c.mu.Lock()
	pipeline := c.pipeline
	c.pipeline = nil
	c.frame = nil
	c.frameW, c.frameH = 0, 0
	if c.stopBus != nil {
		close(c.stopBus)
		c.stopBus = nil
	}
	c.mu.Unlock()

	if pipeline == nil {
		return nil
	}
	if err := pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}
	return nil
}

// Ready reports whether the pipeline is playing without errors.
func (c *CameraSource) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pipeline != nil && !c.failed
}

// Dimensions returns the size of the latest frame, 0×0 before the first one.
func (c *CameraSource) Dimensions() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameW, c.frameH
}

// Pixels copies the latest frame into dst.
func (c *CameraSource) Pixels(dst []color.RGBA) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frame == nil {
		return ErrNotOpen
	}
	if len(dst) != c.frameW*c.frameH {
		return ErrFrameSize
	}
	for i := range dst {
		j := i * 4
		dst[i] = color.RGBA{R: c.frame[j], G: c.frame[j+1], B: c.frame[j+2], A: c.frame[j+3]}
	}
	return nil
}

// Rotation is 0: v4l2 devices deliver upright frames.
func (c *CameraSource) Rotation() int { return 0 }
