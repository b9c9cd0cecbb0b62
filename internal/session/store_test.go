package session

import (
	"sync"
	"testing"
	"time"
)

func TestAppendTrimsToWindow(t *testing.T) {
	store := NewStore(2, time.Hour)

	sess := store.Checkout("s1")
	for i, q := range []string{"first", "second", "third"} {
		sess.Append(Turn{Utterance: q, RowCount: i})
	}
	recent := sess.Recent(10)
	sess.Release()

	if len(recent) != 2 {
		t.Fatalf("len(recent) = %d, want 2", len(recent))
	}
	if recent[0].Utterance != "second" || recent[1].Utterance != "third" {
		t.Fatalf("recent = %+v", recent)
	}
}

func TestRecentReturnsTrailingWindow(t *testing.T) {
	store := NewStore(10, time.Hour)

	sess := store.Checkout("s1")
	for _, q := range []string{"a", "b", "c", "d"} {
		sess.Append(Turn{Utterance: q})
	}
	recent := sess.Recent(2)
	sess.Release()

	if len(recent) != 2 {
		t.Fatalf("len(recent) = %d, want 2", len(recent))
	}
	if recent[0].Utterance != "c" || recent[1].Utterance != "d" {
		t.Fatalf("recent = %+v", recent)
	}
}

func TestRecentCopyIsIsolated(t *testing.T) {
	store := NewStore(10, time.Hour)

	sess := store.Checkout("s1")
	sess.Append(Turn{Utterance: "original"})
	recent := sess.Recent(1)
	recent[0].Utterance = "mutated"
	again := sess.Recent(1)
	sess.Release()

	if again[0].Utterance != "original" {
		t.Fatalf("stored turn mutated through Recent copy: %+v", again[0])
	}
}

func TestSameSessionTurnsAreSerialized(t *testing.T) {
	store := NewStore(10, time.Hour)

	const turns = 20
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess := store.Checkout("shared")
			n := len(sess.Recent(0))
			sess.Append(Turn{RowCount: n})
			sess.Release()
		}()
	}
	wg.Wait()

	sess := store.Checkout("shared")
	recent := sess.Recent(0)
	sess.Release()
	if len(recent) != turns {
		t.Fatalf("len(turns) = %d, want %d", len(recent), turns)
	}
}

func TestResetDiscardsConversation(t *testing.T) {
	store := NewStore(10, time.Hour)

	sess := store.Checkout("s1")
	sess.Append(Turn{Utterance: "remember me"})
	sess.Release()

	store.Reset("s1")

	sess = store.Checkout("s1")
	recent := sess.Recent(0)
	sess.Release()
	if len(recent) != 0 {
		t.Fatalf("conversation survived reset: %+v", recent)
	}
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	store := NewStore(10, time.Minute)
	current := time.Now()
	store.now = func() time.Time { return current }

	sess := store.Checkout("idle")
	sess.Release()
	sess = store.Checkout("fresh")
	sess.Release()

	current = current.Add(2 * time.Minute)
	store.mu.Lock()
	store.sessions["fresh"].lastSeen = current
	store.mu.Unlock()

	store.sweep()

	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}
	store.mu.Lock()
	_, ok := store.sessions["fresh"]
	store.mu.Unlock()
	if !ok {
		t.Fatal("fresh session was expired")
	}
}

func TestSweepSkipsCheckedOutSession(t *testing.T) {
	store := NewStore(10, time.Minute)
	current := time.Now()
	store.now = func() time.Time { return current }

	sess := store.Checkout("busy")
	current = current.Add(5 * time.Minute)
	store.sweep()

	if store.Len() != 1 {
		t.Fatal("in-flight session was expired mid-turn")
	}
	sess.Release()
}
