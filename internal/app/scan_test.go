package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/quizflow/quizflow/internal/scan"
	"github.com/quizflow/quizflow/internal/state"
	"github.com/quizflow/quizflow/internal/token"
)

// fakeScanner records Start and Stop and lets tests push decoded text.
type fakeScanner struct {
	mu      sync.Mutex
	starts  int
	stops   int
	onToken func(string)
	done    chan struct{}
	status  scan.Status
}

func newFakeScanner() *fakeScanner {
	done := make(chan struct{})
	close(done)
	return &fakeScanner{done: done}
}

func (f *fakeScanner) Start(_ context.Context, _ time.Duration, onToken func(string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status.Running {
		return
	}
	f.starts++
	f.onToken = onToken
	f.done = make(chan struct{})
	f.status = scan.Status{Running: true, Width: 640, Height: 480}
}

func (f *fakeScanner) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopLocked(nil)
}

func (f *fakeScanner) stopLocked(err error) {
	if !f.status.Running {
		return
	}
	f.stops++
	f.onToken = nil
	f.status.Running = false
	f.status.Err = err
	close(f.done)
}

// fail stops the scanner as if the camera went away.
func (f *fakeScanner) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopLocked(err)
}

func (f *fakeScanner) Done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

func (f *fakeScanner) Status() scan.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeScanner) emit(text string) {
	f.mu.Lock()
	cb := f.onToken
	f.mu.Unlock()
	if cb != nil {
		cb(text)
	}
}

func (f *fakeScanner) counts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

func newTestManager(t *testing.T) *state.Manager {
	t.Helper()
	store, err := state.Open(filepath.Join(t.TempDir(), "state.sqlite"))
	if err != nil {
		t.Fatalf("open state: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return state.NewManager(store, nil)
}

func TestScanControllerEnter(t *testing.T) {
	cam := newFakeScanner()
	sc := NewScanController(cam, newTestManager(t), 0, nil)
	if sc.State() != ScanIdle {
		t.Fatalf("state = %v, want idle", sc.State())
	}

	sc.Enter(context.Background())
	sc.Enter(context.Background())

	if sc.State() != ScanScanning {
		t.Errorf("state = %v, want scanning", sc.State())
	}
	if starts, _ := cam.counts(); starts != 1 {
		t.Errorf("starts = %d, want 1", starts)
	}
}

func TestScanControllerIgnoresNearMisses(t *testing.T) {
	cam := newFakeScanner()
	st := newTestManager(t)
	sc := NewScanController(cam, st, 0, nil)
	sc.Enter(context.Background())

	for _, text := range []string{"hello", "http://x?qid=qL1_01", "qid=ql1", "QUIZ|qid=qL4"} {
		if _, ok := sc.HandleToken(text); ok {
			t.Errorf("HandleToken(%q) accepted", text)
		}
	}
	if sc.State() != ScanScanning {
		t.Errorf("state = %v, want scanning", sc.State())
	}
	if _, stops := cam.counts(); stops != 0 {
		t.Error("cycle stopped on an ignored code")
	}
	if st.Difficulty() != token.None {
		t.Error("ignored code wrote a difficulty")
	}
}

func TestScanControllerFirstCardWins(t *testing.T) {
	cam := newFakeScanner()
	st := newTestManager(t)
	st.SetPinnedQuestionID("Q7")
	sc := NewScanController(cam, st, 0, nil)
	sc.Enter(context.Background())

	d, ok := sc.HandleToken("QUIZ|qid=qL2")
	if !ok || d != token.Medium {
		t.Fatalf("HandleToken = %v, %v, want medium", d, ok)
	}
	if _, ok := sc.HandleToken("QUIZ|qid=qL3"); ok {
		t.Error("second card accepted after the latch")
	}

	if sc.State() != ScanTransitioning {
		t.Errorf("state = %v, want transitioning", sc.State())
	}
	if st.Difficulty() != token.Medium {
		t.Errorf("difficulty = %v, want medium", st.Difficulty())
	}
	if st.PinnedQuestionID() != "" {
		t.Error("pinned question id not cleared")
	}
	if _, stops := cam.counts(); stops != 1 {
		t.Errorf("stops = %d, want 1", stops)
	}
}

func TestScanControllerBack(t *testing.T) {
	cam := newFakeScanner()
	st := newTestManager(t)
	sc := NewScanController(cam, st, 0, nil)
	sc.Enter(context.Background())

	if !sc.Back() {
		t.Fatal("Back while scanning should succeed")
	}
	if sc.Back() {
		t.Error("Back after transitioning should report false")
	}
	if _, ok := sc.HandleToken("QUIZ|qid=qL1"); ok {
		t.Error("card accepted after Back")
	}
	if st.Difficulty() != token.None {
		t.Error("Back must not write a difficulty")
	}
	if _, stops := cam.counts(); stops != 1 {
		t.Errorf("stops = %d, want 1", stops)
	}
}

func TestScanControllerBackBeforeEnter(t *testing.T) {
	sc := NewScanController(newFakeScanner(), newTestManager(t), 0, nil)
	if sc.Back() {
		t.Error("Back from idle should report false")
	}
}

func TestScanControllerRestart(t *testing.T) {
	cam := newFakeScanner()
	sc := NewScanController(cam, newTestManager(t), 0, nil)
	sc.Enter(context.Background())

	if sc.Restart(context.Background()) {
		t.Error("Restart while running should report false")
	}
	cam.fail(scan.ErrSourceLost)
	if !sc.Restart(context.Background()) {
		t.Fatal("Restart after a failure should succeed")
	}
	if starts, _ := cam.counts(); starts != 2 {
		t.Errorf("starts = %d, want 2", starts)
	}
}

func TestScanControllerDeliversTokens(t *testing.T) {
	cam := newFakeScanner()
	sc := NewScanController(cam, newTestManager(t), 0, nil)
	sc.Enter(context.Background())

	cam.emit("QUIZ|qid=qL1")
	select {
	case text := <-sc.Tokens():
		if text != "QUIZ|qid=qL1" {
			t.Errorf("text = %q", text)
		}
	case <-time.After(time.Second):
		t.Fatal("token not delivered")
	}

	// A full buffer drops instead of blocking the cycle.
	for i := 0; i < tokenBuffer*2; i++ {
		cam.emit("noise")
	}
	if got := len(sc.Tokens()); got != tokenBuffer {
		t.Errorf("buffered = %d, want %d", got, tokenBuffer)
	}
}

func TestScanControllerWithRealCycle(t *testing.T) {
	img, err := scan.EncodeQR(token.Hard.Payload(), 300)
	if err != nil {
		t.Fatalf("EncodeQR: %v", err)
	}
	cyc := scan.NewCycle(scan.NewImageSource(img), scan.NewQRDecoder(), scan.Options{
		WarmupPoll: 5 * time.Millisecond,
		PollEvery:  5 * time.Millisecond,
	})
	st := newTestManager(t)
	sc := NewScanController(cyc, st, 10*time.Millisecond, nil)
	sc.Enter(context.Background())
	defer cyc.Stop()

	select {
	case text := <-sc.Tokens():
		d, ok := sc.HandleToken(text)
		if !ok || d != token.Hard {
			t.Fatalf("HandleToken(%q) = %v, %v, want hard", text, d, ok)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no card decoded")
	}

	select {
	case <-sc.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("cycle still running after the card was accepted")
	}
	if st.Difficulty() != token.Hard {
		t.Errorf("difficulty = %v, want hard", st.Difficulty())
	}
}
