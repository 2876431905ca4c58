package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	TankID  string `json:"tank_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 captures enough tank state to resume after a restart.
// It is not a replay log: rng state is reseeded on import.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed          int64   `json:"seed"`
	TickRate      int     `json:"tick_rate_hz"`
	Clock         float64 `json:"clock"`
	CameraX       float64 `json:"camera_x"`
	CatalogDigest string  `json:"catalog_digest,omitempty"`

	Species []PopulationV1 `json:"species"`

	Counters CountersV1 `json:"counters"`
}

type PopulationV1 struct {
	Key      string    `json:"key"`
	Capacity int       `json:"capacity"`
	Agents   []AgentV1 `json:"agents"` // active agents, slot order
}

type AgentV1 struct {
	ID             uint64     `json:"id"`
	Pos            [3]float64 `json:"pos"`
	Vel            [3]float64 `json:"vel"`
	Target         [3]float64 `json:"target"`
	NextRetargetAt float64    `json:"next_retarget_at"`
	SpeedMin       float64    `json:"speed_min"`
	SpeedMax       float64    `json:"speed_max"`
	Rot            [4]float64 `json:"rot"`
}

type CountersV1 struct {
	NextAgent uint64 `json:"next_agent"`
	Caught    uint64 `json:"caught"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 64*1024)
	defer bw.Flush()

	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return snap, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// FileName is the canonical name for a snapshot taken at tick.
func FileName(tick uint64) string {
	return fmt.Sprintf("%d.snap.zst", tick)
}

// Latest returns the path of the highest-tick snapshot in dir.
func Latest(dir string) (string, uint64, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, err
	}
	type cand struct {
		tick uint64
		name string
	}
	var cands []cand
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".snap.zst") {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSuffix(e.Name(), ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		cands = append(cands, cand{tick: n, name: e.Name()})
	}
	if len(cands) == 0 {
		return "", 0, errors.New("no snapshots")
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].tick < cands[j].tick })
	last := cands[len(cands)-1]
	return filepath.Join(dir, last.name), last.tick, nil
}
