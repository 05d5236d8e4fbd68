package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modelbridge/gembridge/internal/engine"
)

// fakeClient records history snapshots and submissions. delay simulates a slow
// engine call while the session lock is held.
type fakeClient struct {
	delay time.Duration

	mu      sync.Mutex
	history []engine.Content
	calls   []engine.Content
	closed  bool
}

func (f *fakeClient) SetHistory(history []engine.Content) {
	f.mu.Lock()
	f.history = append(f.history[:0:0], history...)
	f.mu.Unlock()
}

func (f *fakeClient) SendMessage(ctx context.Context, _ engine.SendOptions, message engine.Content) (<-chan engine.StreamEvent, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.calls = append(f.calls, message)
	f.mu.Unlock()

	out := make(chan engine.StreamEvent, 2)
	out <- engine.StreamEvent{Type: engine.EventContent, Text: "ok"}
	out <- engine.StreamEvent{Type: engine.EventFinished, FinishReason: engine.FinishStop}
	close(out)
	return out, nil
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func userTurn(text string) engine.Content {
	return engine.Content{Role: engine.RoleUser, Parts: []engine.Part{{Text: text}}}
}

func TestRegistry_PerRequestCreatesFreshHandles(t *testing.T) {
	var created int32
	var clients []*fakeClient
	var mu sync.Mutex
	factory := func(engine.SessionOptions) (engine.Client, error) {
		atomic.AddInt32(&created, 1)
		fc := &fakeClient{}
		mu.Lock()
		clients = append(clients, fc)
		mu.Unlock()
		return fc, nil
	}

	r := NewRegistry(ModePerRequest, factory)
	s1, release1, err := r.Acquire(Options{Model: "gemini-2.5-pro"})
	if err != nil {
		t.Fatal(err)
	}
	s2, release2, err := r.Acquire(Options{Model: "gemini-2.5-pro"})
	if err != nil {
		t.Fatal(err)
	}

	if s1.ID == s2.ID {
		t.Error("per-request sessions must be distinct")
	}
	if atomic.LoadInt32(&created) != 2 {
		t.Errorf("created = %d, want 2", created)
	}

	release1()
	release2()
	for i, fc := range clients {
		if !fc.closed {
			t.Errorf("client %d not closed by release", i)
		}
	}
}

func TestRegistry_SharedReusesOneHandle(t *testing.T) {
	var created int32
	factory := func(engine.SessionOptions) (engine.Client, error) {
		atomic.AddInt32(&created, 1)
		return &fakeClient{}, nil
	}

	r := NewRegistry(ModeShared, factory)
	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, release, err := r.Acquire(Options{Model: "gemini-2.5-pro"})
			if err != nil {
				t.Error(err)
				return
			}
			defer release()
			ids[i] = s.ID
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&created); got != 1 {
		t.Errorf("created = %d, want 1 (concurrent first acquires collapse)", got)
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] != ids[0] {
			t.Errorf("ids[%d] = %s, want %s", i, ids[i], ids[0])
		}
	}
}

func TestSession_SubmitSerializesHistoryAndSend(t *testing.T) {
	fc := &fakeClient{delay: 10 * time.Millisecond}
	factory := func(engine.SessionOptions) (engine.Client, error) { return fc, nil }
	r := NewRegistry(ModeShared, factory)

	sess, release, err := r.Acquire(Options{Model: "gemini-2.5-pro"})
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	// Each submission pairs its own history with its own message. With the
	// lock held across both steps, the history observed at send time always
	// matches the message being sent.
	var wg sync.WaitGroup
	var mismatch atomic.Bool
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			history := []engine.Content{userTurn("shared-history")}
			events, errSubmit := sess.Submit(context.Background(), engine.SendOptions{Model: "gemini-2.5-pro"}, history, userTurn("turn"))
			if errSubmit != nil {
				t.Error(errSubmit)
				return
			}
			for range events {
			}
			fc.mu.Lock()
			if len(fc.history) != 1 {
				mismatch.Store(true)
			}
			fc.mu.Unlock()
		}(i)
	}
	wg.Wait()

	if mismatch.Load() {
		t.Error("history observed mid-submit did not match the submitted snapshot")
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if len(fc.calls) != 4 {
		t.Errorf("calls = %d, want 4", len(fc.calls))
	}
}

func TestRegistry_UnknownModeFallsBack(t *testing.T) {
	r := NewRegistry("bogus", func(engine.SessionOptions) (engine.Client, error) {
		return &fakeClient{}, nil
	})
	if r.Mode() != ModePerRequest {
		t.Errorf("mode = %q, want %q", r.Mode(), ModePerRequest)
	}
}

func TestRegistry_CloseReleasesShared(t *testing.T) {
	fc := &fakeClient{}
	r := NewRegistry(ModeShared, func(engine.SessionOptions) (engine.Client, error) { return fc, nil })

	_, release, err := r.Acquire(Options{Model: "gemini-2.5-pro"})
	if err != nil {
		t.Fatal(err)
	}
	release()

	if err = r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !fc.closed {
		t.Error("shared client not closed")
	}
	// Idempotent.
	if err = r.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
