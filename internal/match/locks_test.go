package match

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockMapSerializesSameKey(t *testing.T) {
	locks := newLockMap()
	unlock := locks.lock("m1")

	acquired := make(chan struct{})
	go func() {
		release := locks.lock("m1")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first is held")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	<-acquired
}

func TestLockMapIndependentKeys(t *testing.T) {
	locks := newLockMap()
	unlockA := locks.lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		locks.lock("b")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another key blocked")
	}
}

func TestLockMapForgetsReleasedKeys(t *testing.T) {
	locks := newLockMap()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locks.lock("m1")()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, locks.size())
}
