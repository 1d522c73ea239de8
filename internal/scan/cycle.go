package scan

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Defaults for Options.
const (
	DefaultInterval       = 500 * time.Millisecond
	DefaultStartupTimeout = 5 * time.Second
	DefaultWarmupPoll     = 100 * time.Millisecond
	DefaultPollEvery      = 33 * time.Millisecond

	// MinStartWidth is the frame width a device must exceed before it counts
	// as started.
	MinStartWidth = 16
	// MinDecodeWidth is the frame width below which decoding is skipped.
	MinDecodeWidth = 100
)

var (
	// ErrPermissionDenied means the camera permission was refused.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrStartupTimeout means no usable frame arrived in time.
	ErrStartupTimeout = errors.New("camera did not start")
	// ErrSourceLost means the source stopped delivering frames mid-run.
	ErrSourceLost = errors.New("frame source stopped delivering")
	errStopped    = errors.New("cycle stopped")
)

// Options tunes a Cycle. Zero values take the defaults above.
type Options struct {
	StartupTimeout time.Duration
	WarmupPoll     time.Duration
	// PollEvery is how often the loop wakes to check for an eligible tick.
	PollEvery  time.Duration
	Permission Permission
	Logger     *zap.Logger
}

type cycleState int

const (
	stateStopped cycleState = iota
	stateStarting
	stateRunning
)

// Status is a point-in-time view of a Cycle.
type Status struct {
	Starting bool
	Running  bool
	Width    int
	Height   int
	Rotation int
	Attempts uint64
	Hits     uint64
	// Err is why the last run stopped on its own, nil after a Stop.
	Err error
}

// Cycle polls a FrameSource and decodes at most one frame per interval.
// It reports every non-empty decode to the callback given to Start and never
// deduplicates; consumers decide when to stop.
type Cycle struct {
	src  FrameSource
	dec  Decoder
	opts Options
	log  *zap.Logger

	mu       sync.Mutex
	state    cycleState
	gen      uint64
	cancel   context.CancelFunc
	done     chan struct{}
	opened   bool
	onToken  func(string)
	interval time.Duration
	last     time.Time

	// Frame buffers, sized to the current frame and dropped on Stop.
	pixels []color.RGBA
	buf    []byte

	width, height, rotation int
	attempts, hits          uint64
	failure                 error
}

// NewCycle creates a stopped cycle over src.
func NewCycle(src FrameSource, dec Decoder, opts Options) *Cycle {
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = DefaultStartupTimeout
	}
	if opts.WarmupPoll <= 0 {
		opts.WarmupPoll = DefaultWarmupPoll
	}
	if opts.PollEvery <= 0 {
		opts.PollEvery = DefaultPollEvery
	}
	if opts.Permission == nil {
		opts.Permission = AllowAll
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	done := make(chan struct{})
	close(done)
	return &Cycle{
		src:  src,
		dec:  dec,
		opts: opts,
		log:  log.Named("scan"),
		done: done,
	}
}

// Start begins scanning in the background. It is a no-op while the cycle is
// starting or running. interval <= 0 uses DefaultInterval.
func (c *Cycle) Start(ctx context.Context, interval time.Duration, onToken func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateStopped {
		return
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	prev := c.done
	c.gen++
	c.state = stateStarting
	c.cancel = cancel
	c.done = make(chan struct{})
	c.onToken = onToken
	c.interval = interval
	c.last = time.Time{}
	c.attempts, c.hits = 0, 0
	c.failure = nil

	go c.run(ctx, c.gen, prev, c.done)
}

// Stop halts scanning and releases the frame buffers and the source. It is
// safe to call repeatedly, concurrently, and from inside the token callback.
func (c *Cycle) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Done is closed when the current run's goroutine has exited.
func (c *Cycle) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Status reports the cycle state and counters.
func (c *Cycle) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Starting: c.state == stateStarting,
		Running:  c.state == stateRunning,
		Width:    c.width,
		Height:   c.height,
		Rotation: c.rotation,
		Attempts: c.attempts,
		Hits:     c.hits,
		Err:      c.failure,
	}
}

// Step performs one loop iteration at time now. It returns false when the
// cycle is not running or has stopped itself because the source went away.
func (c *Cycle) Step(now time.Time) bool {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	return c.step(gen, now)
}

// run owns the source only after the previous run has exited.
func (c *Cycle) run(ctx context.Context, gen uint64, prev <-chan struct{}, done chan struct{}) {
	defer close(done)

	select {
	case <-prev:
	case <-ctx.Done():
		c.stopGen(gen)
		return
	}

	if err := c.warmup(ctx, gen); err != nil {
		if errors.Is(err, errStopped) {
			c.stopGen(gen)
			return
		}
		c.log.Warn("scan start failed", zap.Error(err))
		c.fail(gen, err)
		return
	}

	ticker := time.NewTicker(c.opts.PollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !c.step(gen, now) {
				c.fail(gen, ErrSourceLost)
				return
			}
		}
	}
}

// warmup asks for permission, opens the source and waits for a usable frame.
func (c *Cycle) warmup(ctx context.Context, gen uint64) error {
	ok, err := c.opts.Permission.Request(ctx)
	if err != nil {
		return fmt.Errorf("request permission: %w", err)
	}
	if !ok {
		return ErrPermissionDenied
	}

	if c.stale(gen) {
		return errStopped
	}
	// Open may block on the device; Stop and Status stay responsive.
	if err := c.src.Open(); err != nil {
		return fmt.Errorf("open frame source: %w", err)
	}
	c.mu.Lock()
	if c.gen != gen || c.state != stateStarting {
		c.mu.Unlock()
		if err := c.src.Close(); err != nil {
			c.log.Warn("close frame source", zap.Error(err))
		}
		return errStopped
	}
	c.opened = true
	c.mu.Unlock()

	deadline := time.NewTimer(c.opts.StartupTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(c.opts.WarmupPoll)
	defer poll.Stop()

	for {
		started, err := c.promote(gen)
		if err != nil {
			return err
		}
		if started {
			return nil
		}
		select {
		case <-ctx.Done():
			return errStopped
		case <-deadline.C:
			return ErrStartupTimeout
		case <-poll.C:
		}
	}
}

func (c *Cycle) stale(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen != gen || c.state != stateStarting
}

// promote moves a starting cycle to running once the source shows a frame.
func (c *Cycle) promote(gen uint64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.state != stateStarting {
		return false, errStopped
	}
	w, h := c.src.Dimensions()
	if w <= MinStartWidth {
		return false, nil
	}
	c.state = stateRunning
	c.width, c.height = w, h
	c.log.Info("scan started", zap.Int("width", w), zap.Int("height", h))
	return true, nil
}

func (c *Cycle) step(gen uint64, now time.Time) bool {
	c.mu.Lock()
	if c.gen != gen || c.state != stateRunning {
		c.mu.Unlock()
		return false
	}
	if !c.src.Ready() {
		c.mu.Unlock()
		c.log.Warn("frame source stopped delivering")
		c.fail(gen, ErrSourceLost)
		return false
	}
	if !c.last.IsZero() && now.Sub(c.last) < c.interval {
		c.mu.Unlock()
		return true
	}
	w, h := c.src.Dimensions()
	if w <= MinDecodeWidth {
		c.mu.Unlock()
		return true
	}

	c.rotation = c.src.Rotation()
	text := c.decodeLocked(w, h)
	c.last = now
	onToken := c.onToken
	c.mu.Unlock()

	if text != "" && onToken != nil {
		onToken(text)
	}
	return true
}

// decodeLocked converts the current frame and decodes it. Every failure is
// swallowed: most frames carry no code.
func (c *Cycle) decodeLocked(w, h int) string {
	n := w * h
	if len(c.pixels) != n {
		c.pixels = make([]color.RGBA, n)
		c.buf = make([]byte, n*4)
	}
	c.width, c.height = w, h

	if err := c.src.Pixels(c.pixels); err != nil {
		c.log.Debug("grab frame", zap.Error(err))
		return ""
	}
	for i, p := range c.pixels {
		j := i * 4
		c.buf[j] = p.R
		c.buf[j+1] = p.G
		c.buf[j+2] = p.B
		c.buf[j+3] = p.A
	}

	c.attempts++
	text, err := c.safeDecode(w, h)
	if err != nil || text == "" {
		return ""
	}
	c.hits++
	c.log.Debug("decoded", zap.String("text", text))
	return text
}

func (c *Cycle) safeDecode(w, h int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decoder panic: %v", r)
		}
	}()
	return c.dec.Decode(c.buf, w, h)
}

// fail stops run gen and records why, unless it was already stopped.
func (c *Cycle) fail(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen && c.state != stateStopped {
		c.failure = err
		c.stopLocked()
	}
}

func (c *Cycle) stopGen(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.stopLocked()
	}
}

func (c *Cycle) stopLocked() {
	if c.state == stateStopped {
		return
	}
	c.state = stateStopped
	c.cancel()
	c.onToken = nil
	c.pixels = nil
	c.buf = nil
	if c.opened {
		c.opened = false
		if err := c.src.Close(); err != nil {
			c.log.Warn("close frame source", zap.Error(err))
		}
	}
	c.log.Info("scan stopped", zap.Uint64("attempts", c.attempts), zap.Uint64("hits", c.hits))
}
