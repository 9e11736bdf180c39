package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"cryptotown.ai/internal/persistence/snapshot"
	"cryptotown.ai/internal/sim/town"
	"cryptotown.ai/internal/sim/tuning"
)

func main() {
	var (
		snapPath   = flag.String("snapshot", "", "path to .snap.zst (optional; replays from genesis when empty)")
		townID     = flag.String("town", "town_1", "town id (used when replaying from genesis)")
		txsDir     = flag.String("txs", "", "txs dir containing txs-*.jsonl.zst (optional)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "tuning used for genesis")
		toSeq      = flag.Uint64("to_seq", 0, "stop at seq (inclusive, optional)")
	)
	flag.Parse()

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}

	var snap *snapshot.SnapshotV1
	if *snapPath != "" {
		s, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		snap = &s
		*townID = s.Header.TownID
		fmt.Printf("snapshot v%d town=%s seq=%d now=%d pie_supply=%s holders=%d parcels=%d destitutes=%d\n",
			s.Header.Version, s.Header.TownID, s.Header.Seq, s.Header.Now, s.Pie.Supply,
			len(s.Pie.Balances), len(s.Land.Parcels), len(s.Temple.Destitutes))
	}

	if *txsDir == "" {
		return
	}

	cfg, err := tune.TownConfig(*townID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tuning:", err)
		os.Exit(1)
	}
	// Every transaction runs at its logged time.
	var clock int64
	cfg.Clock = func() int64 { return clock }
	t := town.New(cfg)
	if snap != nil {
		if err := t.ImportSnapshot(*snap); err != nil {
			fmt.Fprintln(os.Stderr, "import snapshot:", err)
			os.Exit(1)
		}
	}
	startSeq := t.CurrentSeq()

	files, err := listTxFiles(*txsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list txs:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no txs files found in", *txsDir)
		os.Exit(1)
	}

	var checked uint64
	for _, path := range files {
		done, err := replayFile(t, path, *toSeq, &clock, &checked)
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		if done {
			break
		}
	}
	fmt.Printf("replay ok: checked=%d txs (from seq=%d)\n", checked, startSeq)
}

func listTxFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "txs-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// replayFile applies every logged tx after the town's current seq and
// compares the outcome with the log. It reports whether toSeq was reached.
func replayFile(t *town.Town, path string, toSeq uint64, clock *int64, checked *uint64) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return false, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	ctx := context.Background()
	for sc.Scan() {
		var entry town.TxLogEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			return false, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if entry.Seq <= t.CurrentSeq() {
			continue
		}
		if toSeq != 0 && entry.Seq > toSeq {
			return true, nil
		}
		if want := t.CurrentSeq() + 1; entry.Seq != want {
			return false, fmt.Errorf("seq gap: want=%d got=%d (file=%s)", want, entry.Seq, filepath.Base(path))
		}

		*clock = entry.Time
		res := t.Apply(ctx, entry.Tx)
		*checked++
		switch {
		case res.Seq != entry.Seq:
			return false, fmt.Errorf("internal seq mismatch: applied=%d entry=%d", res.Seq, entry.Seq)
		case res.OK != entry.OK || res.Code != entry.Code:
			return false, fmt.Errorf("outcome mismatch at seq %d (%s): got ok=%v code=%s want ok=%v code=%s",
				entry.Seq, entry.Op, res.OK, res.Code, entry.OK, entry.Code)
		case len(res.Events) != entry.Events:
			return false, fmt.Errorf("event count mismatch at seq %d (%s): got=%d want=%d", entry.Seq, entry.Op, len(res.Events), entry.Events)
		}
	}
	return false, sc.Err()
}
