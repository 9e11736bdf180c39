package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	townID := fs.String("town", "", "town id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	caller := fs.String("caller", "", "caller filter (txs)")
	evType := fs.String("type", "", "event type filter (events)")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*townID) == "" {
			fmt.Fprintln(os.Stderr, "missing -town or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "towns", *townID, "index", "town.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	switch q {
	case "snapshots":
		rows, err := db.Query(`SELECT seq,now,path,supply,holders,parcels,destitutes FROM snapshots ORDER BY seq DESC LIMIT ?`, *limit)
		exitOn("query", err)
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Seq        int64  `json:"seq"`
				Now        int64  `json:"now"`
				Path       string `json:"path"`
				Supply     string `json:"supply"`
				Holders    int    `json:"holders"`
				Parcels    int    `json:"parcels"`
				Destitutes int    `json:"destitutes"`
			}
			exitOn("scan", rows.Scan(&r.Seq, &r.Now, &r.Path, &r.Supply, &r.Holders, &r.Parcels, &r.Destitutes))
			printJSON(r)
		}
		exitOn("rows", rows.Err())

	case "txs":
		query := `SELECT seq,time,id,op,caller,ok,COALESCE(code,''),COALESCE(message,''),events FROM txs`
		var qargs []any
		if *caller != "" {
			query += ` WHERE caller=?`
			qargs = append(qargs, *caller)
		}
		query += ` ORDER BY seq DESC LIMIT ?`
		qargs = append(qargs, *limit)
		rows, err := db.Query(query, qargs...)
		exitOn("query", err)
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Seq     int64  `json:"seq"`
				Time    int64  `json:"time"`
				ID      string `json:"id"`
				Op      string `json:"op"`
				Caller  string `json:"caller"`
				OK      bool   `json:"ok"`
				Code    string `json:"code,omitempty"`
				Message string `json:"message,omitempty"`
				Events  int    `json:"events"`
			}
			exitOn("scan", rows.Scan(&r.Seq, &r.Time, &r.ID, &r.Op, &r.Caller, &r.OK, &r.Code, &r.Message, &r.Events))
			printJSON(r)
		}
		exitOn("rows", rows.Err())

	case "events":
		query := `SELECT seq,idx,raw_json FROM events`
		var qargs []any
		if *evType != "" {
			query += ` WHERE type=?`
			qargs = append(qargs, *evType)
		}
		query += ` ORDER BY seq DESC, idx DESC LIMIT ?`
		qargs = append(qargs, *limit)
		rows, err := db.Query(query, qargs...)
		exitOn("query", err)
		defer rows.Close()
		for rows.Next() {
			var seq, idx int64
			var raw string
			exitOn("scan", rows.Scan(&seq, &idx, &raw))
			printJSON(map[string]any{"seq": seq, "idx": idx, "event": json.RawMessage(raw)})
		}
		exitOn("rows", rows.Err())

	case "balances":
		rows, err := db.Query(`SELECT account,balance,seq FROM pie_balances ORDER BY account LIMIT ?`, *limit)
		exitOn("query", err)
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Account string `json:"account"`
				Balance string `json:"balance"`
				Seq     int64  `json:"seq"`
			}
			exitOn("scan", rows.Scan(&r.Account, &r.Balance, &r.Seq))
			printJSON(r)
		}
		exitOn("rows", rows.Err())

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(snapshots|txs|events|balances)")
		os.Exit(2)
	}
}

func exitOn(what string, err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, what+":", err)
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
