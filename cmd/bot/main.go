package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"cryptotown.ai/internal/protocol"
)

// bot is a baker: it bakes a batch every interval and, when asked to,
// donates part of it to the temple.
func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		account  = flag.String("account", "chef", "account to act as")
		amount   = flag.String("amount", "1000000000000000000", "pies per bake (base units)")
		donate   = flag.String("donate", "", "pies to donate to the temple after each bake (optional)")
		interval = flag.Duration("interval", 30*time.Second, "time between bakes")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Account:         *account,
		MaxQueue:        8,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	welcome := make(chan protocol.WelcomeMsg, 1)
	go readLoop(conn, logger, welcome)

	var temple string
	select {
	case w := <-welcome:
		temple = w.Components["temple"]
		logger.Printf("WELCOME session=%s account=%s now=%d", w.SessionID, w.Account, w.Now)
	case <-stop:
		return
	}

	if *donate != "" {
		// The temple pulls donations through the allowance mechanism.
		send(conn, logger, protocol.TxMsg{Op: protocol.OpApprove, Target: temple, Amount: *donate})
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	var n int
	for {
		n++
		send(conn, logger, protocol.TxMsg{ID: fmt.Sprintf("bake_%d", n), Op: protocol.OpBakePies, Amount: *amount})
		if *donate != "" {
			send(conn, logger, protocol.TxMsg{ID: fmt.Sprintf("donate_%d", n), Op: protocol.OpDonatePies, Amount: *donate})
			send(conn, logger, protocol.TxMsg{Op: protocol.OpApprove, Target: temple, Amount: *donate})
		}
		_ = conn.WriteJSON(protocol.QueryMsg{
			Type:            protocol.TypeQuery,
			ProtocolVersion: protocol.Version,
			ID:              fmt.Sprintf("kitchen_%d", n),
			Query:           protocol.QueryKitchen,
			Account:         *account,
		})

		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

func send(conn *websocket.Conn, logger *log.Logger, tx protocol.TxMsg) {
	tx.Type = protocol.TypeTx
	tx.ProtocolVersion = protocol.Version
	if err := conn.WriteJSON(tx); err != nil {
		logger.Printf("send %s: %v", tx.Op, err)
	}
}

func readLoop(conn *websocket.Conn, logger *log.Logger, welcome chan<- protocol.WelcomeMsg) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("read: %v", err)
			os.Exit(1)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			select {
			case welcome <- w:
			default:
			}

		case protocol.TypeTxResult:
			var r protocol.TxResultMsg
			if err := json.Unmarshal(msg, &r); err != nil {
				continue
			}
			if r.OK {
				logger.Printf("%s seq=%d ok events=%d", r.Op, r.Seq, len(r.Events))
			} else {
				logger.Printf("%s seq=%d %s: %s", r.Op, r.Seq, r.Code, r.Message)
			}

		case protocol.TypeQueryResult:
			var r protocol.QueryResultMsg
			if err := json.Unmarshal(msg, &r); err != nil {
				continue
			}
			logger.Printf("query %s ok=%v result=%v", r.ID, r.OK, r.Result)
		}
	}
}
