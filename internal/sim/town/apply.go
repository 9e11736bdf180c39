package town

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cryptotown.ai/internal/protocol"
	"cryptotown.ai/internal/sim/ledger"
)

// Apply runs tx as one atomic transaction. Either every mutation it makes
// across all ledgers commits together with its events, or none does.
func (t *Town) Apply(ctx context.Context, tx protocol.TxMsg) protocol.TxResultMsg {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	_, span := t.tracer.Start(ctx, tx.Op, trace.WithAttributes(
		attribute.String("tx.id", tx.ID),
		attribute.String("tx.caller", tx.Caller),
	))
	defer span.End()

	now := t.tick()
	seq := t.seq.Add(1)
	res := protocol.TxResultMsg{
		Type:            protocol.TypeTxResult,
		ProtocolVersion: protocol.Version,
		ID:              tx.ID,
		Op:              tx.Op,
		Seq:             seq,
		Time:            now,
	}

	mark := t.j.Mark()
	if err := t.run(&tx, now); err != nil {
		t.j.RevertTo(mark)
		res.Code = ledger.CodeOf(err)
		res.Message = messageOf(err)
		span.SetStatus(codes.Error, res.Code)
		span.SetAttributes(attribute.String("tx.code", res.Code))
	} else {
		res.OK = true
		res.Events = t.j.Commit()
		for _, ev := range res.Events {
			ev["seq"] = seq
		}
		span.SetAttributes(attribute.Int("tx.events", len(res.Events)))
	}
	t.record(&tx, res)
	t.maybeSnapshot(seq)
	return res
}

// run dispatches tx and turns a panic into an internal error so the caller
// still reverts.
func (t *Town) run(tx *protocol.TxMsg, now int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ledger.Errf(protocol.ErrInternal, "panic in %s: %v", tx.Op, r)
		}
	}()
	h, ok := handlers[tx.Op]
	if !ok {
		return ledger.Errf(protocol.ErrBadRequest, "unknown op %q", tx.Op)
	}
	if c := caller(tx); IsComponent(c) {
		return ledger.Errf(protocol.ErrUnauthorized, "%s is a component account", c)
	}
	return h(t, tx, now)
}

func (t *Town) record(tx *protocol.TxMsg, res protocol.TxResultMsg) {
	if t.txLogger != nil {
		_ = t.txLogger.WriteTx(TxLogEntry{
			Seq:     res.Seq,
			Time:    res.Time,
			ID:      res.ID,
			Op:      res.Op,
			Caller:  tx.Caller,
			OK:      res.OK,
			Code:    res.Code,
			Message: res.Message,
			Events:  len(res.Events),
			Tx:      *tx,
		})
	}
	if t.eventLogger != nil {
		for _, ev := range res.Events {
			_ = t.eventLogger.WriteEvent(EventLogEntry{Seq: res.Seq, Time: res.Time, TxID: res.ID, Event: ev})
		}
	}
}

func (t *Town) maybeSnapshot(seq uint64) {
	if t.snapshotSink == nil || t.cfg.SnapshotEvery == 0 || seq%t.cfg.SnapshotEvery != 0 {
		return
	}
	select {
	case t.snapshotSink <- t.ExportSnapshot():
	default:
		// Writer is behind; the next interval catches up.
	}
}

func messageOf(err error) string {
	var e *ledger.Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return fmt.Sprint(err)
}
