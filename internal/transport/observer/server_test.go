package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"cryptotown.ai/internal/observerproto"
	"cryptotown.ai/internal/protocol"
	"cryptotown.ai/internal/sim/access"
	"cryptotown.ai/internal/sim/town"
)

func TestObserverStreamsCommittedEvents(t *testing.T) {
	hub := NewHub()
	tw := newTown(t, hub)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = tw.Run(ctx) }()

	s := NewServer(tw, hub, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/ws", s.WSHandler())
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/bootstrap")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	var boot observerproto.BootstrapResponse
	err = json.NewDecoder(resp.Body).Decode(&boot)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode bootstrap: %v", err)
	}
	if boot.TownID != "observer_test" || boot.Components["pie"] != town.PieAccount.String() {
		t.Fatalf("bootstrap = %+v", boot)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	sub := observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// The session registers asynchronously; wait for it before submitting.
	deadline := time.Now().Add(5 * time.Second)
	for hub.Sessions() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session never joined")
		}
		time.Sleep(5 * time.Millisecond)
	}

	res, err := tw.Submit(ctx, protocol.TxMsg{Op: protocol.OpAddBaker, Caller: "chef", Target: "bob"})
	if err != nil || !res.OK {
		t.Fatalf("submit = %+v, %v", res, err)
	}

	var ev observerproto.EventMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Seq != res.Seq || ev.TxID != res.ID || ev.Event["type"] != access.EventBakerAdded || ev.Event["baker"] != "bob" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestObserverRejectsMissingSubscribe(t *testing.T) {
	hub := NewHub()
	tw := newTown(t, hub)
	srv := httptest.NewServer(NewServer(tw, hub, nil).WSHandler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(map[string]string{"type": "HELLO"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err = %v, want policy violation close", err)
	}
	if hub.Sessions() != 0 {
		t.Fatalf("sessions = %d", hub.Sessions())
	}
}
