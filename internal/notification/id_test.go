package notification

import (
	"strings"
	"testing"
	"time"
)

func TestNewID_HasTimestampPrefix(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	id := NewID(now)

	if !strings.HasPrefix(id, "1700000000123-") {
		t.Errorf("NewID() = %q, want prefix %q", id, "1700000000123-")
	}
	if len(id) != len("1700000000123-")+12 {
		t.Errorf("len(NewID()) = %d, want %d", len(id), len("1700000000123-")+12)
	}
}

func TestNewID_UniqueWithinSameMillisecond(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		id := NewID(now)
		if seen[id] {
			t.Fatalf("duplicate id %q after %d iterations", id, i)
		}
		seen[id] = true
	}
}
