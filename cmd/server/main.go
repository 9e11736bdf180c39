package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"cryptotown.ai/internal/persistence/archive"
	"cryptotown.ai/internal/persistence/indexdb"
	persistlog "cryptotown.ai/internal/persistence/log"
	"cryptotown.ai/internal/persistence/snapshot"
	"cryptotown.ai/internal/platform/config"
	"cryptotown.ai/internal/platform/otel"
	"cryptotown.ai/internal/sim/town"
	"cryptotown.ai/internal/sim/tuning"
	"cryptotown.ai/internal/transport/observer"
	"cryptotown.ai/internal/transport/ws"
)

// serverEnv supplies flag defaults, so flags still win over the environment.
type serverEnv struct {
	Addr       string `env:"CRYPTOTOWN_ADDR" envDefault:":8080"`
	TownID     string `env:"CRYPTOTOWN_TOWN" envDefault:"town_1"`
	ConfigDir  string `env:"CRYPTOTOWN_CONFIGS" envDefault:"./configs"`
	DataDir    string `env:"CRYPTOTOWN_DATA" envDefault:"./data"`
	DisableDB  bool   `env:"CRYPTOTOWN_DISABLE_DB"`
	AdminHTTP  bool   `env:"CRYPTOTOWN_ENABLE_ADMIN_HTTP" envDefault:"true"`
	LoadLatest bool   `env:"CRYPTOTOWN_LOAD_LATEST_SNAPSHOT" envDefault:"true"`
	KeepSnaps  int    `env:"CRYPTOTOWN_SNAPSHOT_KEEP" envDefault:"48"`
}

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	var envCfg serverEnv
	if err := config.ParseEnv(&envCfg); err != nil {
		logger.Fatalf("%v", err)
	}

	var (
		addr       = flag.String("addr", envCfg.Addr, "http listen address")
		townID     = flag.String("town", envCfg.TownID, "town id")
		configDir  = flag.String("configs", envCfg.ConfigDir, "config directory")
		dataDir    = flag.String("data", envCfg.DataDir, "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", envCfg.DisableDB, "disable the sqlite read-model index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", envCfg.LoadLatest, "load latest snapshot from data dir if present (when -snapshot is empty)")
		keepSnaps  = flag.Int("snapshot_keep", envCfg.KeepSnaps, "number of recent snapshots to keep (0 keeps all; daily archives are never pruned)")
	)
	flag.Parse()

	townDir := filepath.Join(*dataDir, "towns", *townID)
	_ = os.MkdirAll(townDir, 0o755)
	snapDir := filepath.Join(townDir, "snapshots")

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	cfg, err := tune.TownConfig(*townID)
	if err != nil {
		logger.Fatalf("tuning: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	shutdownTracing, err := otel.Setup(ctx, "cryptotown-server")
	if err != nil {
		logger.Fatalf("otel: %v", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(townDir, "index", "town.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index: upsert tuning: %v", err)
		}
	}

	t := town.New(cfg)
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = snapshot.Latest(snapDir)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if err := t.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s seq=%d", filepath.Base(snapshotToLoad), t.CurrentSeq())
	}

	txLog := persistlog.NewTxLogger(townDir)
	eventLog := persistlog.NewEventLogger(townDir)
	defer txLog.Close()
	defer eventLog.Close()
	hub := observer.NewHub()
	txLoggers := multiTxLogger{txLog}
	eventLoggers := multiEventLogger{eventLog, hub}
	if idx != nil {
		txLoggers = append(txLoggers, idx)
		eventLoggers = append(eventLoggers, idx)
	}
	t.SetTxLogger(txLoggers)
	t.SetEventLogger(eventLoggers)

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	t.SetSnapshotSink(snapCh)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for snap := range snapCh {
			path := snapshot.PathFor(snapDir, snap.Header.Seq)
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				logger.Printf("snapshot write: %v", err)
				continue
			}
			if idx != nil {
				idx.RecordSnapshot(path, snap)
				idx.RecordSnapshotState(snap)
			}
			if day, _, ok, err := archive.ArchiveDailySnapshot(townDir, path, snap); err != nil {
				logger.Printf("archive snapshot: %v", err)
			} else if ok {
				logger.Printf("archived snapshot seq=%d day=%s", snap.Header.Seq, day)
			}
			if _, err := archive.Prune(snapDir, *keepSnaps); err != nil {
				logger.Printf("prune snapshots: %v", err)
			}
		}
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := t.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("town stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		snap, err := t.Snapshot(ctx2)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(snap)
	})
	if envCfg.AdminHTTP {
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			seq, err := t.RequestSnapshot(ctx2)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "seq": seq, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "seq": seq})
		})
		mux.HandleFunc("/admin/v1/index", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := map[string]any{
				"observer_sessions": hub.Sessions(),
				"observer_dropped":  hub.Dropped(),
			}
			if idx != nil {
				resp["index"] = idx.Stats()
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
	} else {
		logger.Printf("admin endpoints disabled (CRYPTOTOWN_ENABLE_ADMIN_HTTP=false)")
	}
	obs := observer.NewServer(t, hub, log.New(os.Stdout, "[observer] ", log.LstdFlags|log.Lmicroseconds))
	mux.HandleFunc("/v1/observer/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obs.WSHandler())
	mux.HandleFunc("/v1/ws", ws.NewServer(t, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds)).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// Final snapshot once the loop has stopped and nothing else touches the state.
	<-loopDone
	final := t.ExportSnapshot()
	snapCh <- final
	close(snapCh)
	<-writerDone
	logger.Printf("saved final snapshot seq=%d", final.Header.Seq)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

type multiTxLogger []town.TxLogger

func (m multiTxLogger) WriteTx(entry town.TxLogEntry) error {
	for _, l := range m {
		_ = l.WriteTx(entry)
	}
	return nil
}

type multiEventLogger []town.EventLogger

func (m multiEventLogger) WriteEvent(entry town.EventLogEntry) error {
	for _, l := range m {
		_ = l.WriteEvent(entry)
	}
	return nil
}
