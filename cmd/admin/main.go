package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cryptotown.ai/internal/persistence/snapshot"
	"cryptotown.ai/internal/sim/laboratory"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "snapshot-info":
			snapshotInfoCmd(os.Args[2:])
			return
		case "balances":
			balancesCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "index":
			indexCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "towns"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// resolveSnapshot returns -snapshot, or the latest snapshot of -town.
func resolveSnapshot(dataDir, townID, snapPath string) string {
	if p := strings.TrimSpace(snapPath); p != "" {
		return p
	}
	if strings.TrimSpace(townID) == "" {
		fmt.Fprintln(os.Stderr, "missing -town or -snapshot")
		os.Exit(2)
	}
	p := snapshot.Latest(filepath.Join(dataDir, "towns", townID, "snapshots"))
	if p == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run server until it writes one")
		os.Exit(2)
	}
	return p
}

func snapshotInfoCmd(args []string) {
	fs := flag.NewFlagSet("snapshot-info", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	townID := fs.String("town", "", "town id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	_ = fs.Parse(args)

	path := resolveSnapshot(*dataDir, *townID, *snapPath)
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	printJSON(struct {
		Path        string          `json:"path"`
		Header      snapshot.Header `json:"header"`
		Chef        string          `json:"chef"`
		Bakers      []string        `json:"bakers"`
		KitchenOpen bool            `json:"kitchen_open"`
		PieSupply   string          `json:"pie_supply"`
		PieHolders  int             `json:"pie_holders"`
		Monarch     string          `json:"monarch"`
		LabHolders  int             `json:"lab_holders"`
		LastLandID  uint64          `json:"last_land_id"`
		Parcels     int             `json:"parcels"`
		Destitutes  int             `json:"destitutes"`
	}{
		Path:        path,
		Header:      snap.Header,
		Chef:        snap.Pie.Chef,
		Bakers:      snap.Pie.Bakers,
		KitchenOpen: !snap.Pie.Closed,
		PieSupply:   snap.Pie.Supply,
		PieHolders:  len(snap.Pie.Balances),
		Monarch:     snap.Laboratory.Monarch,
		LabHolders:  len(snap.Laboratory.Balances),
		LastLandID:  snap.Land.LastID,
		Parcels:     len(snap.Land.Parcels),
		Destitutes:  len(snap.Temple.Destitutes),
	})
}

func balancesCmd(args []string) {
	fs := flag.NewFlagSet("balances", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	townID := fs.String("town", "", "town id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	account := fs.String("account", "", "only this account (optional)")
	_ = fs.Parse(args)

	snap, err := snapshot.ReadSnapshot(resolveSnapshot(*dataDir, *townID, *snapPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	accounts := map[string]struct{}{}
	for a := range snap.Pie.Balances {
		accounts[a] = struct{}{}
	}
	for a := range snap.Laboratory.Balances {
		accounts[a] = struct{}{}
	}
	parcels := map[string]int{}
	for _, p := range snap.Land.Parcels {
		parcels[p.Owner]++
		accounts[p.Owner] = struct{}{}
	}
	names := make([]string, 0, len(accounts))
	for a := range accounts {
		if *account == "" || a == *account {
			names = append(names, a)
		}
	}
	sort.Strings(names)

	type row struct {
		Account   string            `json:"account"`
		Pie       string            `json:"pie"`
		Resources map[string]string `json:"resources,omitempty"`
		Parcels   int               `json:"parcels,omitempty"`
	}
	for _, a := range names {
		r := row{Account: a, Pie: snap.Pie.Balances[a], Parcels: parcels[a]}
		if r.Pie == "" {
			r.Pie = "0"
		}
		if vals := snap.Laboratory.Balances[a]; len(vals) > 0 {
			r.Resources = map[string]string{}
			for k, v := range vals {
				if v != "" && v != "0" {
					r.Resources[laboratory.Kind(k).String()] = v
				}
			}
		}
		printJSON(r)
	}
}
