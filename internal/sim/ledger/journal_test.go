package ledger

import (
	"testing"

	"github.com/holiman/uint256"

	"cryptotown.ai/internal/protocol"
)

func TestJournalRevertRestoresMapsAndFields(t *testing.T) {
	j := NewJournal()
	bal := map[Account]*uint256.Int{"alice": uint256.NewInt(5)}
	closed := false

	m := j.Mark()
	Put(j, bal, "alice", uint256.NewInt(7))
	Put(j, bal, "bob", uint256.NewInt(1))
	Set(j, &closed, true)
	j.Emit(protocol.Event{"type": "X"})

	j.RevertTo(m)
	if got := Get(bal, "alice"); got.Uint64() != 5 {
		t.Fatalf("alice = %s, want 5", got.Dec())
	}
	if _, ok := bal["bob"]; ok {
		t.Fatalf("bob should have been removed")
	}
	if closed {
		t.Fatalf("closed should be restored")
	}
	if evs := j.Commit(); len(evs) != 0 {
		t.Fatalf("expected reverted events dropped, got %d", len(evs))
	}
}

func TestJournalNestedMarks(t *testing.T) {
	j := NewJournal()
	set := map[Account]bool{}

	outer := j.Mark()
	Put(j, set, "a", true)
	j.Emit(protocol.Event{"type": "A"})
	inner := j.Mark()
	Put(j, set, "b", true)
	Delete(j, set, "a")
	j.RevertTo(inner)

	if !set["a"] || set["b"] {
		t.Fatalf("inner revert wrong: %v", set)
	}
	evs := j.Commit()
	if len(evs) != 1 || evs[0]["type"] != "A" {
		t.Fatalf("events = %v", evs)
	}
	// Commit clears the undo log; reverting to an old mark is a no-op.
	j.RevertTo(outer)
	if !set["a"] {
		t.Fatalf("committed state must survive")
	}
}

func TestNilJournalAppliesWithoutUndo(t *testing.T) {
	var j *Journal
	m := map[Account]bool{}
	Put(j, m, "x", true)
	j.Emit(protocol.Event{"type": "ignored"})
	j.RevertTo(j.Mark())
	if !m["x"] {
		t.Fatalf("nil journal must still apply writes")
	}
}

func TestAmountHelpers(t *testing.T) {
	if got := Units(4).Dec(); got != "4000000000000000000" {
		t.Fatalf("Units(4) = %s", got)
	}
	if _, err := ParseAmount("12x"); !IsCode(err, protocol.ErrBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
	max := new(uint256.Int).SetAllOne()
	if _, err := AddChecked(max, uint256.NewInt(1)); !IsCode(err, protocol.ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if CodeOf(nil) != "" {
		t.Fatalf("nil error has no code")
	}
}
