package matchtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lotusgame/duel-server-go/internal/match"
)

// Publisher records published views.
type Publisher struct {
	mu    sync.Mutex
	err   error
	views chan match.View
}

// NewPublisher creates a Publisher buffering up to 128 views.
func NewPublisher() *Publisher {
	return &Publisher{views: make(chan match.View, 128)}
}

// FailWith makes every following Publish return err.
func (p *Publisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *Publisher) Publish(_ context.Context, _ string, view match.View) error {
	select {
	case p.views <- view:
	default:
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Next waits for the next published view.
func (p *Publisher) Next(t testing.TB, timeout time.Duration) match.View {
	t.Helper()
	select {
	case v := <-p.views:
		return v
	case <-time.After(timeout):
		t.Fatalf("no match update published within %s", timeout)
		return match.View{}
	}
}
