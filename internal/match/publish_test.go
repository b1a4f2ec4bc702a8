package match

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lotusgame/duel-server-go/internal/replay"
)

type gatedPublisher struct {
	gate chan struct{}
	mu   sync.Mutex
	got  []int
}

func (p *gatedPublisher) Publish(_ context.Context, _ string, view View) error {
	<-p.gate
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, len(view.ReplaySteps))
	return nil
}

func (p *gatedPublisher) delivered() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.got...)
}

func viewWithSteps(id string, n int) View {
	return View{ID: id, ReplaySteps: make([]replay.Step, n)}
}

func TestPublishKeepsOrderPerMatch(t *testing.T) {
	pub := &gatedPublisher{gate: make(chan struct{})}
	s := &Service{publisher: pub, feeds: newFeedMap(), cfg: DefaultConfig(), logger: zaptest.NewLogger(t)}

	for n := 1; n <= 5; n++ {
		s.publish(viewWithSteps("m1", n))
	}
	close(pub.gate)

	require.Eventually(t, func() bool { return s.feeds.size() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, pub.delivered())
}

func TestPublishDropsStaleViews(t *testing.T) {
	pub := &gatedPublisher{gate: make(chan struct{})}
	s := &Service{publisher: pub, feeds: newFeedMap(), cfg: DefaultConfig(), logger: zaptest.NewLogger(t)}

	s.publish(viewWithSteps("m1", 3))
	s.publish(viewWithSteps("m1", 2))
	s.publish(viewWithSteps("m1", 4))
	close(pub.gate)

	require.Eventually(t, func() bool { return s.feeds.size() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{3, 4}, pub.delivered())
}
