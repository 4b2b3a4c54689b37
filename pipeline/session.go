package pipeline

import (
	"fmt"
	"sync/atomic"

	"github.com/aluiziolira/go-key-pricer/models"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Session carries the state shared by one batch run: the cancellation flag
// and a memo of titles already resolved in the run.
type Session struct {
	cancelled atomic.Bool
	memo      *lru.Cache[string, *models.Resolution]
}

// NewSession creates a session whose memo holds up to size resolutions.
func NewSession(size int) (*Session, error) {
	memo, err := lru.New[string, *models.Resolution](size)
	if err != nil {
		return nil, fmt.Errorf("create resolution memo: %w", err)
	}
	return &Session{memo: memo}, nil
}

// Cancel asks the running batch to stop at the next title boundary.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// Cancelled reports whether Cancel was called since the last Reset.
func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

// Reset clears the cancellation flag and forgets every resolution.
func (s *Session) Reset() {
	s.cancelled.Store(false)
	s.memo.Purge()
}

func (s *Session) recall(slug string) (*models.Resolution, bool) {
	return s.memo.Get(slug)
}

func (s *Session) remember(slug string, res *models.Resolution) {
	s.memo.Add(slug, res)
}
