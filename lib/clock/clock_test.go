package clock

import (
	"testing"
	"time"
)

func TestNowNeverDecreases(t *testing.T) {
	c := New()

	prev := c.Now()
	for i := 0; i < 10000; i++ {
		now := c.Now()
		if now < prev {
			t.Fatalf("clock went backwards: %v < %v", now, prev)
		}
		prev = now
	}
}

func TestDeadline(t *testing.T) {
	c := New()

	before := c.Now()
	deadline := c.Deadline(100 * time.Millisecond)

	if deadline < before+100*time.Millisecond {
		t.Errorf("deadline %v is earlier than %v + 100ms", deadline, before)
	}
}

func TestMonotonicAdvances(t *testing.T) {
	a := Monotonic()
	time.Sleep(5 * time.Millisecond)
	b := Monotonic()

	if b <= a {
		t.Errorf("expected monotonic clock to advance, got %v then %v", a, b)
	}
}
