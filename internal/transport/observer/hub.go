package observer

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"cryptotown.ai/internal/observerproto"
	"cryptotown.ai/internal/sim/town"
)

// Hub fans committed events out to observer sessions. WriteEvent is called
// from the town loop and never blocks it: a session that falls behind loses
// events and the loss is counted.
type Hub struct {
	mu   sync.Mutex
	subs map[string]*session

	nextID  atomic.Uint64
	dropped atomic.Uint64
}

type session struct {
	out    chan []byte
	types  map[string]bool
	filter string
}

func NewHub() *Hub {
	return &Hub{subs: map[string]*session{}}
}

// Join registers a session and returns its id and outbound queue.
func (h *Hub) Join(sub observerproto.SubscribeMsg, queue int) (string, <-chan []byte) {
	if queue <= 0 {
		queue = 256
	}
	id := fmt.Sprintf("O%d", h.nextID.Add(1))
	s := &session{out: make(chan []byte, queue)}
	s.apply(sub)
	h.mu.Lock()
	h.subs[id] = s
	h.mu.Unlock()
	return id, s.out
}

// Update replaces the filter of a live session.
func (h *Hub) Update(id string, sub observerproto.SubscribeMsg) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		s.apply(sub)
	}
}

func (h *Hub) Leave(id string) {
	h.mu.Lock()
	s, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if ok {
		close(s.out)
	}
}

func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) WriteEvent(entry town.EventLogEntry) error {
	b, err := json.Marshal(observerproto.EventMsg{
		Type:            observerproto.TypeEvent,
		ProtocolVersion: observerproto.Version,
		Seq:             entry.Seq,
		Time:            entry.Time,
		TxID:            entry.TxID,
		Event:           entry.Event,
	})
	if err != nil {
		return err
	}
	typ, _ := entry.Event["type"].(string)

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		if !s.wants(typ, entry) {
			continue
		}
		select {
		case s.out <- b:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

func (s *session) apply(sub observerproto.SubscribeMsg) {
	s.types = nil
	if len(sub.Types) > 0 {
		s.types = map[string]bool{}
		for _, t := range sub.Types {
			s.types[strings.ToUpper(strings.TrimSpace(t))] = true
		}
	}
	s.filter = strings.TrimSpace(sub.Account)
}

func (s *session) wants(typ string, entry town.EventLogEntry) bool {
	if s.types != nil && !s.types[typ] {
		return false
	}
	if s.filter == "" {
		return true
	}
	for k, v := range entry.Event {
		if k == "type" {
			continue
		}
		if str, ok := v.(string); ok && str == s.filter {
			return true
		}
	}
	return false
}
