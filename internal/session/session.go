package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"moorelink-bot/internal/models"
)

var (
	// ErrNoSession means the button belongs to a batch that was already
	// finished or cancelled.
	ErrNoSession = errors.New("no pending session")
	// ErrStale means the click targeted a post that is no longer current.
	ErrStale = errors.New("post expired or out of order")
	// ErrBulkLocked means send-all was requested after an individual
	// delivery already happened in this batch.
	ErrBulkLocked = errors.New("bulk send unavailable after individual sends")
)

// Deliverer pushes one post to the user. Implemented by the transport layer.
type Deliverer interface {
	DeliverPost(ctx context.Context, userID int64, post models.Post) error
}

// Key identifies one pending batch. A user has at most one session per
// platform+account pair; starting a new fetch for the same pair replaces it.
type Key struct {
	UserID   int64
	Platform string
	Account  string
}

// Failure records a post that could not be delivered.
type Failure struct {
	Index int
	Post  models.Post
	Err   error
}

type session struct {
	posts         []models.Post
	cursor        int
	sent          int
	hasSentSingle bool
	failed        []Failure
	cancelled     bool
}

// Store holds all pending batches in memory. Sessions do not survive a
// restart; the seen-post ledger already guarantees a refetch will not repeat
// delivered content.
type Store struct {
	mu       sync.Mutex
	sessions map[Key]*session
	delay    time.Duration // pause between posts during send-all
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewStore(bulkDelay time.Duration) *Store {
	return &Store{
		sessions: make(map[Key]*session),
		delay:    bulkDelay,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Outcome reports the session state after an operation, for rendering the
// next prompt.
type Outcome struct {
	Next       *models.Post // nil when Exhausted
	Cursor     int          // index of Next within the batch
	Total      int
	Sent       int
	Failed     []Failure
	BulkLocked bool // a send happened, send-all is no longer offered
	Exhausted  bool // batch finished, session removed
}

// Start replaces any pending batch for key with a new one and returns the
// first post to present.
func (s *Store) Start(key Key, posts []models.Post) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &session{posts: posts}
	s.sessions[key] = sess
	return s.outcomeLocked(key, sess)
}

// Peek returns the current position without advancing.
func (s *Store) Peek(key Key) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return Outcome{}, ErrNoSession
	}
	return s.outcomeLocked(key, sess), nil
}

// Confirm delivers the post at idx and advances. The single-send flag is set
// before the delivery attempt, so even a failed send locks out send-all. A
// delivery failure is recorded and the batch still advances; the caller gets
// the failure through Outcome.Failed.
func (s *Store) Confirm(ctx context.Context, key Key, idx int, d Deliverer) (Outcome, error) {
	s.mu.Lock()
	sess, ok := s.sessions[key]
	if !ok {
		s.mu.Unlock()
		return Outcome{}, ErrNoSession
	}
	if idx != sess.cursor || sess.cursor >= len(sess.posts) {
		out := s.outcomeLocked(key, sess)
		s.mu.Unlock()
		return out, ErrStale
	}
	sess.hasSentSingle = true
	post := sess.posts[sess.cursor]
	s.mu.Unlock()

	err := d.DeliverPost(ctx, key.UserID, post)

	s.mu.Lock()
	defer s.mu.Unlock()
	// session may have been cancelled while delivering
	sess, ok = s.sessions[key]
	if !ok {
		return Outcome{}, ErrNoSession
	}
	if err != nil {
		sess.failed = append(sess.failed, Failure{Index: sess.cursor, Post: post, Err: err})
	} else {
		sess.sent++
	}
	sess.cursor++
	return s.outcomeLocked(key, sess), nil
}

// Skip advances past the post at idx without delivering it.
func (s *Store) Skip(key Key, idx int) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return Outcome{}, ErrNoSession
	}
	if idx != sess.cursor || sess.cursor >= len(sess.posts) {
		return s.outcomeLocked(key, sess), ErrStale
	}
	sess.cursor++
	return s.outcomeLocked(key, sess), nil
}

// SendAll delivers every remaining post with a pause between items. It is
// refused once any individual send has happened in the batch. Failures skip
// the post and continue. Cancel during the loop stops it cleanly.
func (s *Store) SendAll(ctx context.Context, key Key, d Deliverer) (Outcome, error) {
	s.mu.Lock()
	sess, ok := s.sessions[key]
	if !ok {
		s.mu.Unlock()
		return Outcome{}, ErrNoSession
	}
	if sess.hasSentSingle {
		out := s.outcomeLocked(key, sess)
		s.mu.Unlock()
		return out, ErrBulkLocked
	}
	sess.hasSentSingle = true
	s.mu.Unlock()

	first := true
	for {
		s.mu.Lock()
		sess, ok = s.sessions[key]
		if !ok {
			s.mu.Unlock()
			return Outcome{}, ErrNoSession
		}
		if sess.cancelled || sess.cursor >= len(sess.posts) {
			out := s.outcomeLocked(key, sess)
			s.mu.Unlock()
			return out, nil
		}
		idx := sess.cursor
		post := sess.posts[idx]
		s.mu.Unlock()

		if !first {
			if err := s.sleep(ctx, s.delay); err != nil {
				return s.finish(key)
			}
		}
		first = false

		err := d.DeliverPost(ctx, key.UserID, post)

		s.mu.Lock()
		sess, ok = s.sessions[key]
		if !ok {
			s.mu.Unlock()
			return Outcome{}, ErrNoSession
		}
		if err != nil {
			sess.failed = append(sess.failed, Failure{Index: idx, Post: post, Err: err})
		} else {
			sess.sent++
		}
		sess.cursor++
		s.mu.Unlock()
	}
}

func (s *Store) finish(key Key) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return Outcome{}, ErrNoSession
	}
	return s.outcomeLocked(key, sess), nil
}

// Cancel removes the batch and reports what was delivered before the cancel.
func (s *Store) Cancel(key Key) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return Outcome{}, ErrNoSession
	}
	sess.cancelled = true
	out := Outcome{Total: len(sess.posts), Sent: sess.sent, Failed: sess.failed, Exhausted: true}
	delete(s.sessions, key)
	return out, nil
}

// Active reports whether the user has any pending batch at all.
func (s *Store) Active(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.sessions {
		if k.UserID == userID {
			return true
		}
	}
	return false
}

// CancelAll drops every pending batch for the user, returning how many were
// removed.
func (s *Store) CancelAll(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.sessions {
		if k.UserID == userID {
			delete(s.sessions, k)
			n++
		}
	}
	return n
}

// outcomeLocked builds the Outcome for sess and removes it when exhausted.
func (s *Store) outcomeLocked(key Key, sess *session) Outcome {
	out := Outcome{
		Cursor:     sess.cursor,
		Total:      len(sess.posts),
		Sent:       sess.sent,
		Failed:     sess.failed,
		BulkLocked: sess.hasSentSingle,
	}
	if sess.cancelled || sess.cursor >= len(sess.posts) {
		out.Exhausted = true
		delete(s.sessions, key)
		return out
	}
	p := sess.posts[sess.cursor]
	out.Next = &p
	return out
}
