package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"cryptotown.ai/internal/protocol"
)

// Town is the part of the town loop a session talks to.
type Town interface {
	Submit(ctx context.Context, tx protocol.TxMsg) (protocol.TxResultMsg, error)
	Ask(ctx context.Context, q protocol.QueryMsg) (protocol.QueryResultMsg, error)
	Components() map[string]string
	Now() int64
}

type Server struct {
	town Town
	log  *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(t Town, logger *log.Logger) *Server {
	s := &Server{
		town: t,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		account, maxQ := s.handshake(conn)
		if account == "" {
			return
		}
		out := make(chan []byte, maxQ)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop. Requests of one session are answered in order.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			reply := s.handle(ctx, account, msg)
			if reply == nil {
				continue
			}
			b, err := json.Marshal(reply)
			if err != nil {
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
		}
	}
}

// handle serves one inbound message. A nil reply means the message is ignored.
func (s *Server) handle(ctx context.Context, account string, msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return nil
	}
	switch base.Type {
	case protocol.TypeTx:
		return s.handleTx(ctx, account, msg)
	case protocol.TypeQuery:
		return s.handleQuery(ctx, msg)
	}
	return nil
}

func (s *Server) handleTx(ctx context.Context, account string, msg []byte) protocol.TxResultMsg {
	var tx protocol.TxMsg
	_ = json.Unmarshal(msg, &tx)
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	reject := func(code, message string) protocol.TxResultMsg {
		return protocol.TxResultMsg{
			Type:            protocol.TypeTxResult,
			ProtocolVersion: protocol.Version,
			ID:              tx.ID,
			Op:              tx.Op,
			Code:            code,
			Message:         message,
		}
	}
	if err := protocol.ValidateTx(msg); err != nil {
		return reject(protocol.ErrProtoBadRequest, err.Error())
	}
	if tx.ProtocolVersion != protocol.Version {
		return reject(protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	// The session account is the only identity a client can act as.
	tx.Caller = account

	res, err := s.town.Submit(ctx, tx)
	if err != nil {
		return reject(protocol.ErrInternal, err.Error())
	}
	if !res.OK && s.log != nil {
		s.log.Printf("tx %s %s by %s: %s %s", res.ID, res.Op, account, res.Code, res.Message)
	}
	return res
}

func (s *Server) handleQuery(ctx context.Context, msg []byte) protocol.QueryResultMsg {
	var q protocol.QueryMsg
	if err := json.Unmarshal(msg, &q); err != nil || q.ProtocolVersion != protocol.Version {
		return protocol.QueryResultMsg{
			Type:            protocol.TypeQueryResult,
			ProtocolVersion: protocol.Version,
			ID:              q.ID,
			Code:            protocol.ErrProtoBadRequest,
			Message:         "malformed QUERY",
		}
	}
	res, err := s.town.Ask(ctx, q)
	if err != nil {
		return protocol.QueryResultMsg{
			Type:            protocol.TypeQueryResult,
			ProtocolVersion: protocol.Version,
			ID:              q.ID,
			Code:            protocol.ErrInternal,
			Message:         err.Error(),
		}
	}
	return res
}

func (s *Server) handshake(conn *websocket.Conn) (account string, maxQ int) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", 0
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return "", 0
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", 0
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return "", 0
	}
	account = strings.TrimSpace(hello.Account)
	if account == "" {
		closeWith(conn, "missing account")
		return "", 0
	}
	components := s.town.Components()
	for _, c := range components {
		if account == c {
			closeWith(conn, "component account")
			return "", 0
		}
	}

	maxQ = hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
		Account:         account,
		Components:      components,
		Now:             s.town.Now(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", 0
	}
	if s.log != nil {
		s.log.Printf("session %s opened for %s", welcome.SessionID, account)
	}
	return account, maxQ
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
