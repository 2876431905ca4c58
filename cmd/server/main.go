package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"riverfish.ai/internal/persistence/indexdb"
	persistlog "riverfish.ai/internal/persistence/log"
	"riverfish.ai/internal/persistence/snapshot"
	"riverfish.ai/internal/sim/catalogs"
	"riverfish.ai/internal/sim/tank"
	"riverfish.ai/internal/sim/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		tankID     = flag.String("tank", "river_1", "tank id")
		seed       = flag.Int64("seed", 0, "rng seed (0: use tuning.yaml)")
		configDir  = flag.String("configs", "./configs", "config directory")
		assetsDir  = flag.String("assets", "./assets", "model asset directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (catches + ticks + catalogs + snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

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

	tankDir := filepath.Join(*dataDir, "tanks", *tankID)
	_ = os.MkdirAll(tankDir, 0o755)

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(tankDir, "index.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	resolveCtx, resolveCancel := context.WithTimeout(ctx, 10*time.Second)
	species, err := tank.BuildSpecies(resolveCtx, cats, tune, tank.DirResolver{Root: *assetsDir}, logger)
	resolveCancel()
	if err != nil {
		logger.Fatalf("species: %v", err)
	}

	t, err := tank.New(tank.Config{
		ID:            *tankID,
		Tuning:        tune,
		Species:       species,
		CatalogDigest: cats.Species.Digest,
		Seed:          *seed,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatalf("tank: %v", err)
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		if p, _, err := snapshot.Latest(filepath.Join(tankDir, "snapshots")); err == nil {
			snapshotToLoad = p
		}
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.TankID != "" && snap.Header.TankID != *tankID {
			logger.Fatalf("snapshot tank id mismatch: flag=%s snap=%s", *tankID, snap.Header.TankID)
		}
		if snap.CatalogDigest != "" && snap.CatalogDigest != cats.Species.Digest {
			logger.Printf("snapshot catalog digest differs from species.json; resuming anyway")
		}
		if err := t.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), t.CurrentTick())
	}

	tickLog := persistlog.NewTickLogger(tankDir)
	catchLog := persistlog.NewCatchLogger(tankDir)
	defer tickLog.Close()
	defer catchLog.Close()
	t.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
	t.SetCatchLogger(multiCatchLogger{a: catchLog, b: idx})

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	t.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := filepath.Join(tankDir, "snapshots", snapshot.FileName(snap.Header.Tick))
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				idx.RecordSnapshot(path, snap)
			}
		}
	}()

	go func() {
		if err := t.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("tank stopped: %v", err)
		}
	}()

	enableAdminHTTP := envBool("RF_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("RF_ENABLE_PPROF_HTTP", false)
	if !enableAdminHTTP {
		logger.Printf("admin endpoints disabled (RF_ENABLE_ADMIN_HTTP=false)")
	}
	if !enablePprofHTTP {
		logger.Printf("pprof endpoints disabled (RF_ENABLE_PPROF_HTTP=false)")
	}

	mux := newMux(httpDeps{
		Tank:   t,
		Index:  idx,
		Logger: logger,
		Admin:  enableAdminHTTP,
		Pprof:  enablePprofHTTP,
	})

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

	logger.Printf("tank=%s species=%d listening on %s", *tankID, len(species), *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
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

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

type multiTickLogger struct {
	a tank.TickLogger
	b tank.TickLogger
}

func (m multiTickLogger) WriteTick(entry tank.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiCatchLogger struct {
	a tank.CatchLogger
	b tank.CatchLogger
}

func (m multiCatchLogger) WriteCatch(n tank.RemovalNotice) error {
	if m.a != nil {
		_ = m.a.WriteCatch(n)
	}
	if m.b != nil {
		_ = m.b.WriteCatch(n)
	}
	return nil
}
