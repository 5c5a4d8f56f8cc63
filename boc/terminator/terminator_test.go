package terminator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTerminatorWaitsForAllOutstandingWork(t *testing.T) {
	term := New()
	term.Increment()
	term.Increment()

	done := make(chan struct{})
	go func() {
		term.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before outstanding work was retired")
	case <-time.After(20 * time.Millisecond):
	}

	term.Decrement()
	term.Decrement()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait never returned after all outstanding work was retired")
	}
}

func TestTerminatorWaitIsIdempotent(t *testing.T) {
	term := New()

	done1 := make(chan struct{})
	done2 := make(chan struct{})
	go func() { term.Wait(); close(done1) }()
	go func() { term.Wait(); close(done2) }()

	select {
	case <-done1:
	case <-time.After(time.Second):
		t.Fatal("first Wait never returned")
	}
	select {
	case <-done2:
	case <-time.After(time.Second):
		t.Fatal("second Wait never returned")
	}
	assert.True(t, term.Done())
}
