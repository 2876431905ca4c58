package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"sort"
	"strings"
	"time"

	"riverfish.ai/internal/persistence/indexdb"
	"riverfish.ai/internal/sim/tank"
	"riverfish.ai/internal/sim/tuning"
	"riverfish.ai/internal/transport/ws"
)

type httpDeps struct {
	Tank   *tank.Tank
	Index  *indexdb.SQLiteIndex
	Logger *log.Logger
	Admin  bool
	Pprof  bool
}

func newMux(d httpDeps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeTankMetrics(rw, d.Tank.ID(), d.Tank.Metrics())
		if d.Index != nil {
			writeIndexMetrics(rw, d.Tank.ID(), d.Index.Stats())
		}
	})

	if d.Admin {
		mux.HandleFunc("/admin/v1/state", adminOnly(func(rw http.ResponseWriter, r *http.Request) {
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				TankID  string           `json:"tank_id"`
				Tick    uint64           `json:"tick"`
				Metrics tank.TankMetrics `json:"metrics"`
			}{
				TankID:  d.Tank.ID(),
				Tick:    d.Tank.CurrentTick(),
				Metrics: d.Tank.Metrics(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		}))
		mux.HandleFunc("/admin/v1/snapshot", adminOnly(func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			tick, err := d.Tank.RequestSnapshot(ctx)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
		}))
		mux.HandleFunc("/admin/v1/catches", adminOnly(func(rw http.ResponseWriter, r *http.Request) {
			rw.Header().Set("Content-Type", "application/json")
			if d.Index == nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": "index disabled"})
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			totals, err := d.Index.CatchTotals(ctx)
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "totals": totals})
		}))
		mux.HandleFunc("/admin/v1/behavior", adminOnly(func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			body, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
			if err == nil && !json.Valid(body) {
				err = errors.New("body is not valid json")
			}
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "code": "E_BAD_REQUEST", "error": err.Error()})
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			// Fields absent from the body keep their live values.
			fish, err := d.Tank.RequestBehavior(ctx, func(f *tuning.Fish) error {
				return json.Unmarshal(body, f)
			})
			if err != nil {
				rw.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "code": "E_BAD_REQUEST", "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "behavior": fish})
		}))
	}
	if d.Pprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(d.Tank, d.Logger).Handler())
	return mux
}

func adminOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
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

func writeTankMetrics(w io.Writer, tankID string, m tank.TankMetrics) {
	fmt.Fprintf(w, "# HELP riverfish_tank_tick Current tank tick.\n")
	fmt.Fprintf(w, "# TYPE riverfish_tank_tick gauge\n")
	fmt.Fprintf(w, "riverfish_tank_tick{tank=%q} %d\n", tankID, m.Tick)

	fmt.Fprintf(w, "# HELP riverfish_tank_agents_active Active agents per species.\n")
	fmt.Fprintf(w, "# TYPE riverfish_tank_agents_active gauge\n")
	keys := make([]string, 0, len(m.Active))
	for k := range m.Active {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "riverfish_tank_agents_active{tank=%q,species=%q} %d\n", tankID, k, m.Active[k])
	}

	fmt.Fprintf(w, "# HELP riverfish_tank_capacity Total population capacity.\n")
	fmt.Fprintf(w, "# TYPE riverfish_tank_capacity gauge\n")
	fmt.Fprintf(w, "riverfish_tank_capacity{tank=%q} %d\n", tankID, m.Capacity)

	fmt.Fprintf(w, "# HELP riverfish_tank_sessions Connected renderer sessions.\n")
	fmt.Fprintf(w, "# TYPE riverfish_tank_sessions gauge\n")
	fmt.Fprintf(w, "riverfish_tank_sessions{tank=%q} %d\n", tankID, m.Sessions)

	fmt.Fprintf(w, "# HELP riverfish_tank_caught_total Agents removed by catches.\n")
	fmt.Fprintf(w, "# TYPE riverfish_tank_caught_total counter\n")
	fmt.Fprintf(w, "riverfish_tank_caught_total{tank=%q} %d\n", tankID, m.Caught)

	fmt.Fprintf(w, "# HELP riverfish_tank_index_rebuilds_total Spatial index rebuilds.\n")
	fmt.Fprintf(w, "# TYPE riverfish_tank_index_rebuilds_total counter\n")
	fmt.Fprintf(w, "riverfish_tank_index_rebuilds_total{tank=%q} %d\n", tankID, m.IndexRebuilds)

	fmt.Fprintf(w, "# HELP riverfish_tank_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(w, "# TYPE riverfish_tank_queue_depth gauge\n")
	fmt.Fprintf(w, "riverfish_tank_queue_depth{tank=%q,queue=%q} %d\n", tankID, "catch", m.QueueDepths.Catch)
	fmt.Fprintf(w, "riverfish_tank_queue_depth{tank=%q,queue=%q} %d\n", tankID, "join", m.QueueDepths.Join)
	fmt.Fprintf(w, "riverfish_tank_queue_depth{tank=%q,queue=%q} %d\n", tankID, "leave", m.QueueDepths.Leave)

	fmt.Fprintf(w, "# HELP riverfish_tank_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(w, "# TYPE riverfish_tank_step_ms gauge\n")
	fmt.Fprintf(w, "riverfish_tank_step_ms{tank=%q} %.3f\n", tankID, m.StepMS)
}

func writeIndexMetrics(w io.Writer, tankID string, s indexdb.Stats) {
	fmt.Fprintf(w, "# HELP riverfish_index_queue_depth SQLite index queue depth.\n")
	fmt.Fprintf(w, "# TYPE riverfish_index_queue_depth gauge\n")
	fmt.Fprintf(w, "riverfish_index_queue_depth{tank=%q} %d\n", tankID, s.QueueDepth)

	fmt.Fprintf(w, "# HELP riverfish_index_dropped_total Index writes dropped on a full queue.\n")
	fmt.Fprintf(w, "# TYPE riverfish_index_dropped_total counter\n")
	fmt.Fprintf(w, "riverfish_index_dropped_total{tank=%q,kind=%q} %d\n", tankID, "tick", s.DropTickTotal)
	fmt.Fprintf(w, "riverfish_index_dropped_total{tank=%q,kind=%q} %d\n", tankID, "catch", s.DropCatchTotal)
	fmt.Fprintf(w, "riverfish_index_dropped_total{tank=%q,kind=%q} %d\n", tankID, "snapshot", s.DropSnapshotTotal)
}
