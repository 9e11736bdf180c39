package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"cryptotown.ai/internal/persistence/snapshot"
)

type DailyArchiveMeta struct {
	Day        string `json:"day"`
	Seq        uint64 `json:"seq"`
	Now        int64  `json:"now"`
	Snapshot   string `json:"snapshot"`
	CreatedAt  string `json:"created_at"`
	PieSupply  string `json:"pie_supply"`
	PieHolders int    `json:"pie_holders"`
	Parcels    int    `json:"parcels"`
	Destitutes int    `json:"destitutes"`
}

// DayOf is the UTC day a snapshot's town clock falls on.
func DayOf(now int64) string {
	return time.Unix(now, 0).UTC().Format("2006-01-02")
}

// ArchiveDailySnapshot copies the first snapshot of each UTC day into
// `townDir/archives/day_<YYYY-MM-DD>/`. Later snapshots of an archived day
// are skipped. It returns (day, archivedPath, archived=true) when it copied.
func ArchiveDailySnapshot(townDir, snapshotPath string, snap snapshot.SnapshotV1) (day string, archivedPath string, archived bool, err error) {
	if snap.Header.Now <= 0 {
		return "", "", false, nil
	}
	day = DayOf(snap.Header.Now)
	archiveDir := filepath.Join(townDir, "archives", "day_"+day)
	if _, err := os.Stat(filepath.Join(archiveDir, "meta.json")); err == nil {
		return day, "", false, nil
	}
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", "", false, err
	}

	meta := DailyArchiveMeta{
		Day:        day,
		Seq:        snap.Header.Seq,
		Now:        snap.Header.Now,
		Snapshot:   filepath.Base(dst),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
		PieSupply:  snap.Pie.Supply,
		PieHolders: len(snap.Pie.Balances),
		Parcels:    len(snap.Land.Parcels),
		Destitutes: len(snap.Temple.Destitutes),
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", "", false, err
	}
	if err := os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644); err != nil {
		return "", "", false, fmt.Errorf("write meta: %w", err)
	}
	return day, dst, true, nil
}

// Prune deletes all but the keep newest snapshots in dir (by seq). keep <= 0
// keeps everything. It returns the removed paths.
func Prune(dir string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type snapFile struct {
		seq  uint64
		path string
	}
	var files []snapFile
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		seq, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, snapFile{seq: seq, path: filepath.Join(dir, name)})
	}
	if len(files) <= keep {
		return nil, nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].seq > files[j].seq })
	var removed []string
	for _, f := range files[keep:] {
		if err := os.Remove(f.path); err != nil {
			return removed, err
		}
		removed = append(removed, f.path)
	}
	return removed, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
