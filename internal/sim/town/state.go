package town

import (
	"fmt"

	"cryptotown.ai/internal/persistence/snapshot"
)

// ExportSnapshot captures every ledger. Only call it from the loop goroutine
// or while no loop runs.
func (t *Town) ExportSnapshot() snapshot.SnapshotV1 {
	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			TownID:  t.cfg.ID,
			Seq:     t.seq.Load(),
			Now:     t.now.Load(),
		},
		Pie:        t.pie.Export(),
		Laboratory: t.lab.Export(),
		Land:       t.land.Export(),
		Temple:     t.temple.Export(),
	}
}

// ImportSnapshot replaces the whole town state. Call it before Run.
func (t *Town) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version %d", s.Header.Version)
	}
	if s.Header.TownID != "" && t.cfg.ID != "" && s.Header.TownID != t.cfg.ID {
		return fmt.Errorf("snapshot town id mismatch: have %s, snapshot %s", t.cfg.ID, s.Header.TownID)
	}
	if err := t.pie.Import(s.Pie); err != nil {
		return fmt.Errorf("pie: %w", err)
	}
	if err := t.lab.Import(s.Laboratory); err != nil {
		return fmt.Errorf("laboratory: %w", err)
	}
	if err := t.land.Import(s.Land); err != nil {
		return fmt.Errorf("land: %w", err)
	}
	if err := t.temple.Import(s.Temple); err != nil {
		return fmt.Errorf("temple: %w", err)
	}
	t.seq.Store(s.Header.Seq)
	t.now.Store(s.Header.Now)
	return nil
}
