package ledger

import "cryptotown.ai/internal/protocol"

// Journal records undo steps and pending events for the transaction in
// flight. Ledger values are replaced, never mutated in place, so an undo
// step only needs the previous pointer.
//
// A nil *Journal is valid: mutations apply without undo and events are dropped.
type Journal struct {
	undo   []func()
	events []protocol.Event
}

type Mark struct {
	undo   int
	events int
}

func NewJournal() *Journal { return &Journal{} }

func (j *Journal) Mark() Mark {
	if j == nil {
		return Mark{}
	}
	return Mark{undo: len(j.undo), events: len(j.events)}
}

// RevertTo undoes every mutation recorded after m and drops its events.
func (j *Journal) RevertTo(m Mark) {
	if j == nil {
		return
	}
	for i := len(j.undo) - 1; i >= m.undo; i-- {
		j.undo[i]()
		j.undo[i] = nil
	}
	j.undo = j.undo[:m.undo]
	j.events = j.events[:m.events]
}

// Commit forgets the undo log and hands back the pending events.
func (j *Journal) Commit() []protocol.Event {
	if j == nil {
		return nil
	}
	evs := j.events
	j.undo = j.undo[:0]
	j.events = nil
	return evs
}

func (j *Journal) Record(undo func()) {
	if j == nil || undo == nil {
		return
	}
	j.undo = append(j.undo, undo)
}

func (j *Journal) Emit(ev protocol.Event) {
	if j == nil {
		return
	}
	j.events = append(j.events, ev)
}

func (j *Journal) Pending() int {
	if j == nil {
		return 0
	}
	return len(j.undo)
}

// Put sets m[k] = v and records how to restore the previous entry.
func Put[K comparable, V any](j *Journal, m map[K]V, k K, v V) {
	prev, had := m[k]
	m[k] = v
	j.Record(func() {
		if had {
			m[k] = prev
		} else {
			delete(m, k)
		}
	})
}

// Delete removes m[k] and records how to restore it.
func Delete[K comparable, V any](j *Journal, m map[K]V, k K) {
	prev, had := m[k]
	if !had {
		return
	}
	delete(m, k)
	j.Record(func() { m[k] = prev })
}

// Set assigns *p = v and records the previous value.
func Set[T any](j *Journal, p *T, v T) {
	prev := *p
	*p = v
	j.Record(func() { *p = prev })
}
