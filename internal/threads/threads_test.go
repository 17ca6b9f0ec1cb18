package threads

import (
	"fmt"
	"sync"
	"testing"
)

func TestTrim_KeepsSeedAndMostRecent(t *testing.T) {
	t.Parallel()

	c := New("be nice", 20, 11)
	for i := 1; i <= 25; i++ {
		c.AppendTurn(1, RoleUser, fmt.Sprintf("msg %d", i))
	}
	if got := c.Len(1); got != 26 {
		t.Fatalf("Len() before trim = %d, want 26", got)
	}

	if !c.Trim(1) {
		t.Fatal("Trim() = false, want true")
	}

	turns := c.Turns(1)
	if len(turns) != 11 {
		t.Fatalf("len(Turns) = %d, want 11", len(turns))
	}
	if turns[0].Role != RoleSystem || turns[0].Content != "be nice" {
		t.Errorf("seed = %+v, want system seed", turns[0])
	}
	for i, turn := range turns[1:] {
		want := fmt.Sprintf("msg %d", 16+i)
		if turn.Content != want {
			t.Errorf("turn %d = %q, want %q", i+1, turn.Content, want)
		}
	}
}

func TestTrim_UnderCapIsUntouched(t *testing.T) {
	t.Parallel()

	c := New("seed", 20, 11)
	for i := 0; i < 19; i++ {
		c.AppendTurn(1, RoleUser, "x")
	}
	if c.Trim(1) {
		t.Error("Trim() = true for a thread at the cap")
	}
	if got := c.Len(1); got != 20 {
		t.Errorf("Len() = %d, want 20", got)
	}
	if c.Trim(404) {
		t.Error("Trim() on unknown chat should be a no-op")
	}
}

func TestSweepAll(t *testing.T) {
	t.Parallel()

	c := New("seed", 4, 3)
	for i := 0; i < 5; i++ {
		c.AppendTurn(1, RoleUser, "a")
		c.AppendTurn(1, RoleAssistant, "b")
	}
	c.AppendTurn(2, RoleUser, "short")

	if got := c.SweepAll(); got != 1 {
		t.Errorf("SweepAll() = %d, want 1", got)
	}
	if got := c.Len(1); got != 3 {
		t.Errorf("Len(1) = %d, want 3", got)
	}
	if got := c.Len(2); got != 2 {
		t.Errorf("Len(2) = %d, want 2", got)
	}
}

func TestTurnsReturnsCopy(t *testing.T) {
	t.Parallel()

	c := New("seed", 20, 11)
	if got := c.Turns(9); len(got) != 1 || got[0].Role != RoleSystem {
		t.Errorf("Turns(unknown) = %+v, want seed only", got)
	}
	if c.Len(9) != 0 {
		t.Error("Turns should not create a thread")
	}

	c.AppendTurn(9, RoleUser, "q")
	turns := c.Turns(9)
	turns[1].Content = "mutated"
	if got := c.Turns(9)[1].Content; got != "q" {
		t.Errorf("cache mutated through copy: %q", got)
	}

	c.Reset(9)
	if c.Len(9) != 0 {
		t.Error("Reset() should drop the thread")
	}
}

func TestConcurrentAppend(t *testing.T) {
	t.Parallel()

	c := New("seed", 1000, 10)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.AppendTurn(1, RoleUser, "x")
		}()
	}
	wg.Wait()
	if got := c.Len(1); got != 101 {
		t.Errorf("Len() = %d, want 101", got)
	}
}
