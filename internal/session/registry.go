// Package session owns engine conversation handles and the policy for
// reusing them across requests. Callers borrow a session for the duration of
// one request; the registry keeps exclusive ownership of the handles.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/modelbridge/gembridge/internal/engine"
)

// Session policy modes.
const (
	// ModePerRequest creates a fresh engine handle for every request. This is
	// the default: OpenAI-style clients resend the full history each call, so
	// nothing needs to outlive one request.
	ModePerRequest = "per-request"

	// ModeShared keeps one process-wide handle whose history is overwritten
	// wholesale on every request. Submissions are serialized per session so
	// two requests can never interleave their history-set and submit steps.
	ModeShared = "shared"
)

// Session is one engine conversation handle together with its identity.
type Session struct {
	ID               string
	Model            string
	WorkingDirectory string
	CreatedAt        time.Time

	client engine.Client
	mu     sync.Mutex
}

// Submit replaces the session's history and sends the final turn as the new
// message. The session lock is held across both steps, so concurrent callers
// of a shared session queue rather than corrupt each other's conversation.
func (s *Session) Submit(ctx context.Context, opts engine.SendOptions, history []engine.Content, message engine.Content) (<-chan engine.StreamEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client.SetHistory(history)
	return s.client.SendMessage(ctx, opts, message)
}

// Options select the session to acquire.
type Options struct {
	Model            string
	WorkingDirectory string
}

// Registry creates and hands out sessions according to the configured mode.
type Registry struct {
	mode    string
	factory engine.Factory

	mu     sync.Mutex
	shared *Session
	group  singleflight.Group
}

// NewRegistry builds a registry. An unrecognized mode falls back to
// per-request.
func NewRegistry(mode string, factory engine.Factory) *Registry {
	if mode != ModeShared {
		mode = ModePerRequest
	}
	return &Registry{mode: mode, factory: factory}
}

// Mode returns the active session policy.
func (r *Registry) Mode() string { return r.mode }

// Acquire returns the session to use for one request, creating it lazily. In
// shared mode concurrent first requests are collapsed onto a single creation.
// The returned release function must be called when the request is done; in
// per-request mode it closes the handle.
func (r *Registry) Acquire(opts Options) (*Session, func(), error) {
	if r.mode == ModeShared {
		return r.acquireShared(opts)
	}

	client, err := r.factory(engine.SessionOptions{Model: opts.Model, WorkingDirectory: opts.WorkingDirectory})
	if err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	sess := newSession(client, opts)
	release := func() {
		if errClose := client.Close(); errClose != nil {
			log.Errorf("session registry: close session %s error: %v", sess.ID, errClose)
		}
	}
	return sess, release, nil
}

func (r *Registry) acquireShared(opts Options) (*Session, func(), error) {
	r.mu.Lock()
	existing := r.shared
	r.mu.Unlock()
	if existing != nil {
		return existing, func() {}, nil
	}

	v, err, _ := r.group.Do("shared", func() (any, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.shared != nil {
			return r.shared, nil
		}
		client, errCreate := r.factory(engine.SessionOptions{Model: opts.Model, WorkingDirectory: opts.WorkingDirectory})
		if errCreate != nil {
			return nil, errCreate
		}
		r.shared = newSession(client, opts)
		log.Debugf("created shared session %s", r.shared.ID)
		return r.shared, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create shared session: %w", err)
	}
	return v.(*Session), func() {}, nil
}

// Close releases the shared session if one exists.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shared == nil {
		return nil
	}
	err := r.shared.client.Close()
	r.shared = nil
	return err
}

func newSession(client engine.Client, opts Options) *Session {
	return &Session{
		ID:               uuid.NewString(),
		Model:            opts.Model,
		WorkingDirectory: opts.WorkingDirectory,
		CreatedAt:        time.Now(),
		client:           client,
	}
}
