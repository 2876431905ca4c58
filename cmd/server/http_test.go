package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"riverfish.ai/internal/persistence/indexdb"
	"riverfish.ai/internal/sim/catalogs"
	"riverfish.ai/internal/sim/tank"
	"riverfish.ai/internal/sim/tuning"
)

func newRunningTank(t *testing.T) *tank.Tank {
	t.Helper()
	return newRunningTankWith(t, tuning.Defaults())
}

func newRunningTankWith(t *testing.T, tune tuning.Tuning) *tank.Tank {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "configs"))
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	species, err := tank.BuildSpecies(context.Background(), cats, tune, nil, nil)
	if err != nil {
		t.Fatalf("species: %v", err)
	}
	tk, err := tank.New(tank.Config{ID: "river_test", Tuning: tune, Species: species})
	if err != nil {
		t.Fatalf("tank: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go tk.Run(ctx)
	return tk
}

func TestMetrics_HandWrittenPrometheusText(t *testing.T) {
	tk := newRunningTank(t)
	mux := newMux(httpDeps{Tank: tk})

	deadline := time.Now().Add(2 * time.Second)
	for tk.Metrics().Tick == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	for _, want := range []string{
		`riverfish_tank_tick{tank="river_test"}`,
		`riverfish_tank_agents_active{tank="river_test",species="trout"}`,
		`riverfish_tank_step_ms{tank="river_test"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %s:\n%s", want, body)
		}
	}
}

func TestAdmin_LoopbackOnlyAndBehavior(t *testing.T) {
	tk := newRunningTank(t)
	idx, err := indexdb.OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	defer idx.Close()
	mux := newMux(httpDeps{Tank: tk, Index: idx, Admin: true})

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "10.0.0.5:4000"
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("non-loopback status=%d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/v1/behavior", strings.NewReader(`{"separation_radius": 2.0}`))
	req.RemoteAddr = "127.0.0.1:4000"
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("behavior status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		OK       bool        `json:"ok"`
		Behavior tuning.Fish `json:"behavior"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.Behavior.SeparationRadius != 2.0 || resp.Behavior.SpeedMax != tuning.Defaults().Fish.SpeedMax {
		t.Fatalf("behavior resp: %+v", resp)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/v1/behavior", strings.NewReader(`{"retarget_min_s": 9, "retarget_max_s": 1}`))
	req.RemoteAddr = "127.0.0.1:4000"
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid behavior status=%d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/catches", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("catches status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:80": true,
		"[::1]:80":     true,
		"10.1.2.3:80":  false,
		"garbage":      false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("%s: got %v want %v", in, got, want)
		}
	}
}

func postBehavior(t *testing.T, mux http.Handler, body string) tuning.Fish {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/admin/v1/behavior", strings.NewReader(body))
	req.RemoteAddr = "127.0.0.1:4000"
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("behavior %s: status=%d body=%s", body, rr.Code, rr.Body.String())
	}
	var resp struct {
		OK       bool        `json:"ok"`
		Behavior tuning.Fish `json:"behavior"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.Behavior
}

func TestAdmin_BehaviorEditsBetweenTicksCompose(t *testing.T) {
	tune := tuning.Defaults()
	tune.TickRateHz = 1
	tk := newRunningTankWith(t, tune)
	mux := newMux(httpDeps{Tank: tk, Admin: true})

	first := postBehavior(t, mux, `{"separation_radius": 2.5}`)
	if first.SeparationRadius != 2.5 {
		t.Fatalf("first edit: %+v", first)
	}
	second := postBehavior(t, mux, `{"accel": 5}`)
	if second.SeparationRadius != 2.5 || second.Accel != 5 {
		t.Fatalf("second edit dropped the first: radius=%v accel=%v", second.SeparationRadius, second.Accel)
	}
	if live := tk.Metrics().Behavior; live.SeparationRadius != 2.5 || live.Accel != 5 {
		t.Fatalf("live behavior: radius=%v accel=%v", live.SeparationRadius, live.Accel)
	}

	// Normalization is applied and echoed.
	third := postBehavior(t, mux, `{"speed_jitter": 3}`)
	if third.SpeedJitter != 0.9 || third.SeparationRadius != 2.5 {
		t.Fatalf("normalized echo: %+v", third)
	}
}
