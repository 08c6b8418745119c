package locks

import (
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
)

func TestDoSerializesSameClient(t *testing.T) {
	l := New()
	clientID := snowflake.ID(42)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(clientID, func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Fatalf("expected 100 serialized increments, got %d", counter)
	}
}

func TestDoDifferentClientsDoNotBlock(t *testing.T) {
	l := New()

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = l.Do(snowflake.ID(1), func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	done := make(chan struct{})
	go func() {
		_ = l.Do(snowflake.ID(2), func() error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock for a different client blocked")
	}
	close(release)
}

func TestDoReturnsError(t *testing.T) {
	l := New()
	want := errSentinel
	if got := l.Do(snowflake.ID(7), func() error { return want }); got != want {
		t.Fatalf("expected sentinel error, got %v", got)
	}
}

var errSentinel = &sentinelError{}

type sentinelError struct{}

func (*sentinelError) Error() string { return "sentinel" }
