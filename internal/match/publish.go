package match

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// feedMap keeps one delivery queue per match. Updates of a match are sent one
// at a time in the order they were queued, and a view with fewer replay steps
// than one already delivered is dropped.
type feedMap struct {
	mu     sync.Mutex
	queues map[string]*feed
}

type feed struct {
	views     []View
	delivered int
}

func newFeedMap() *feedMap {
	return &feedMap{queues: make(map[string]*feed)}
}

// enqueue adds view to its match queue and reports whether the queue was idle,
// in which case the caller must start draining it.
func (m *feedMap) enqueue(view View) (*feed, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, running := m.queues[view.ID]
	if !running {
		f = &feed{}
		m.queues[view.ID] = f
	}
	f.views = append(f.views, view)
	return f, !running
}

// next pops the next view worth sending. It returns false once the queue is
// empty and forgets the match.
func (m *feedMap) next(matchID string, f *feed) (View, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(f.views) > 0 {
		view := f.views[0]
		f.views = f.views[1:]
		if len(view.ReplaySteps) <= f.delivered {
			continue
		}
		f.delivered = len(view.ReplaySteps)
		return view, true
	}
	delete(m.queues, matchID)
	return View{}, false
}

func (m *feedMap) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues)
}

// publish queues the update for background delivery. Callers hold the match
// lock so the queue order follows the commit order. Failures are logged only.
func (s *Service) publish(view View) {
	f, idle := s.feeds.enqueue(view)
	if idle {
		go s.drain(view.ID, f)
	}
}

func (s *Service) drain(matchID string, f *feed) {
	for {
		view, ok := s.feeds.next(matchID, f)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PublishTimeout)
		if err := s.publisher.Publish(ctx, matchID, view); err != nil {
			s.logger.Warn("failed to publish match update",
				zap.String("match_id", matchID),
				zap.Error(err),
			)
		}
		cancel()
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, View) error { return nil }
