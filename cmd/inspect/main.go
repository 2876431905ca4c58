package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "riverfish.ai/internal/persistence/log"
	"riverfish.ai/internal/persistence/snapshot"
	"riverfish.ai/internal/sim/tank"
)

func main() {
	var (
		tankDir  = flag.String("tank_dir", "", "tank data dir (data/tanks/<id>); fills the paths below when set")
		snapPath = flag.String("snapshot", "", "path to .snap.zst (default: latest under tank_dir)")
		catchDir = flag.String("catches", "", "dir containing catches-*.jsonl.zst (optional)")
		events   = flag.String("events", "", "dir containing events-*.jsonl.zst (optional)")
		fromTick = flag.Uint64("from_tick", 0, "ignore log records before tick (inclusive)")
		toTick   = flag.Uint64("to_tick", 0, "ignore log records after tick (inclusive, 0: no limit)")
	)
	flag.Parse()

	if *tankDir != "" {
		if *snapPath == "" {
			if p, _, err := snapshot.Latest(filepath.Join(*tankDir, "snapshots")); err == nil {
				*snapPath = p
			}
		}
		if *catchDir == "" {
			*catchDir = filepath.Join(*tankDir, "catches")
		}
		if *events == "" {
			*events = filepath.Join(*tankDir, "events")
		}
	}
	if *snapPath == "" && *catchDir == "" && *events == "" {
		fmt.Fprintln(os.Stderr, "nothing to inspect: pass -tank_dir, -snapshot, -catches or -events")
		os.Exit(2)
	}

	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		printSnapshot(os.Stdout, snap)
	}

	rng := tickRange{From: *fromTick, To: *toTick}
	if *catchDir != "" {
		files, err := listLogFiles(*catchDir, "catches-")
		if err != nil && !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "list catches:", err)
			os.Exit(1)
		}
		sum, err := summarizeCatches(files, rng)
		if err != nil {
			fmt.Fprintln(os.Stderr, "catches:", err)
			os.Exit(1)
		}
		sum.print(os.Stdout)
	}
	if *events != "" {
		files, err := listLogFiles(*events, "events-")
		if err != nil && !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "list events:", err)
			os.Exit(1)
		}
		sum, err := summarizeTicks(files, rng)
		if err != nil {
			fmt.Fprintln(os.Stderr, "events:", err)
			os.Exit(1)
		}
		sum.print(os.Stdout)
	}
}

type tickRange struct{ From, To uint64 }

func (r tickRange) contains(tick uint64) bool {
	if tick < r.From {
		return false
	}
	return r.To == 0 || tick <= r.To
}

func printSnapshot(w io.Writer, snap snapshot.SnapshotV1) {
	agents := 0
	for _, p := range snap.Species {
		agents += len(p.Agents)
	}
	fmt.Fprintf(w, "snapshot v%d tank=%s tick=%d seed=%d clock=%.2fs camera_x=%.2f species=%d agents=%d caught=%d\n",
		snap.Header.Version, snap.Header.TankID, snap.Header.Tick, snap.Seed, snap.Clock, snap.CameraX,
		len(snap.Species), agents, snap.Counters.Caught)
	for _, p := range snap.Species {
		fmt.Fprintf(w, "  %-12s active=%d/%d\n", p.Key, len(p.Agents), p.Capacity)
	}
}

func listLogFiles(dir, prefix string) ([]string, error) {
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
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".jsonl.zst") {
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

type catchSummary struct {
	Total     int
	BySpecies map[string]int
	FirstTick uint64
	LastTick  uint64
}

func summarizeCatches(files []string, rng tickRange) (catchSummary, error) {
	sum := catchSummary{BySpecies: map[string]int{}}
	for _, path := range files {
		err := persistlog.ReadJSONL(path, func(line []byte) error {
			var n tank.RemovalNotice
			if err := json.Unmarshal(line, &n); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			if !rng.contains(n.Tick) {
				return nil
			}
			if sum.Total == 0 || n.Tick < sum.FirstTick {
				sum.FirstTick = n.Tick
			}
			if n.Tick > sum.LastTick {
				sum.LastTick = n.Tick
			}
			sum.Total++
			sum.BySpecies[n.Species]++
			return nil
		})
		if err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func (s catchSummary) print(w io.Writer) {
	fmt.Fprintf(w, "catches total=%d ticks=[%d,%d]\n", s.Total, s.FirstTick, s.LastTick)
	keys := make([]string, 0, len(s.BySpecies))
	for k := range s.BySpecies {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-12s %d\n", k, s.BySpecies[k])
	}
}

type tickSummary struct {
	Records   int
	FirstTick uint64
	LastTick  uint64
	MaxDT     float64

	// RebuildTicks counts logged ticks that rebuilt the index; IndexRebuilds
	// is the real rebuild count across the range from the cumulative counter.
	RebuildTicks  int
	IndexRebuilds uint64

	// Active counts from the last record in range.
	Active map[string]int

	firstRebuilds uint64
}

func summarizeTicks(files []string, rng tickRange) (tickSummary, error) {
	var sum tickSummary
	for _, path := range files {
		err := persistlog.ReadJSONL(path, func(line []byte) error {
			var e tank.TickLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			if !rng.contains(e.Tick) {
				return nil
			}
			if sum.Records == 0 {
				sum.FirstTick = e.Tick
				sum.firstRebuilds = e.IndexRebuilds
			}
			sum.Records++
			sum.LastTick = e.Tick
			sum.Active = e.Active
			if e.Rebuilt {
				sum.RebuildTicks++
			}
			if e.IndexRebuilds >= sum.firstRebuilds {
				sum.IndexRebuilds = e.IndexRebuilds - sum.firstRebuilds
			}
			if e.DT > sum.MaxDT {
				sum.MaxDT = e.DT
			}
			return nil
		})
		if err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func (s tickSummary) print(w io.Writer) {
	fmt.Fprintf(w, "ticks records=%d range=[%d,%d] index_rebuilds=%d logged_rebuild_ticks=%d max_dt=%.4f\n",
		s.Records, s.FirstTick, s.LastTick, s.IndexRebuilds, s.RebuildTicks, s.MaxDT)
	keys := make([]string, 0, len(s.Active))
	for k := range s.Active {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-12s active=%d\n", k, s.Active[k])
	}
}
