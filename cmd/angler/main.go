package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"riverfish.ai/internal/protocol"
)

func main() {
	var (
		url        = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name       = flag.String("name", "angler", "client name")
		selected   = flag.String("species", "", "only catch this species (empty: any)")
		catchEvery = flag.Uint64("catch_every", 50, "issue a catch every N frames (0: never)")
		sweepMin   = flag.Float64("camera_min", 6, "camera sweep near distance")
		sweepMax   = flag.Float64("camera_max", 16, "camera sweep far distance")
		sweepSec   = flag.Float64("sweep_period_s", 30, "camera sweep period in seconds (0: fixed camera)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[angler] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 8},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	a := &angler{
		conn:       conn,
		logger:     logger,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		selected:   *selected,
		catchEvery: *catchEvery,
		sweep:      sweep{Min: *sweepMin, Max: *sweepMax, Period: *sweepSec},
		start:      time.Now(),
	}

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("read: %v", err)
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME session=%s tank=%s tick_rate=%d species=%d digest=%s",
				w.SessionID, w.Tank.ID, w.Tank.TickRateHz, len(w.Species), w.CatalogDigest)
			for _, sp := range w.Species {
				logger.Printf("  %s active=%d/%d render=%s", sp.Key, sp.Active, sp.Capacity, sp.Render.Kind)
			}

		case protocol.TypeFrame:
			var f protocol.FrameMsg
			if err := json.Unmarshal(msg, &f); err != nil {
				continue
			}
			a.handleFrame(&f)

		case protocol.TypeCatchResult:
			var r protocol.CatchResultMsg
			if err := json.Unmarshal(msg, &r); err != nil {
				continue
			}
			logger.Printf("CATCH_RESULT req=%s status=%s code=%s species=%s slot=%d agent=%d active=%d",
				r.ReqID, r.Status, r.Code, r.Species, r.Slot, r.AgentID, r.Active)

		case protocol.TypeRemoved:
			var r protocol.RemovedMsg
			if err := json.Unmarshal(msg, &r); err != nil {
				continue
			}
			logger.Printf("REMOVED tick=%d species=%s agent=%d active=%d", r.Tick, r.Species, r.AgentID, r.Active)
		}
	}
}

type angler struct {
	conn       *websocket.Conn
	logger     *log.Logger
	rng        *rand.Rand
	selected   string
	catchEvery uint64
	sweep      sweep
	start      time.Time

	frames  uint64
	lastCam float64
	reqSeq  int
}

func (a *angler) handleFrame(f *protocol.FrameMsg) {
	a.frames++

	if a.sweep.Period > 0 && a.frames%10 == 0 {
		x := a.sweep.At(time.Since(a.start).Seconds())
		if math.Abs(x-a.lastCam) > 0.05 {
			_ = a.conn.WriteJSON(protocol.CameraMsg{
				Type:            protocol.TypeCamera,
				ProtocolVersion: protocol.Version,
				CameraX:         x,
			})
			a.lastCam = x
		}
	}

	if a.catchEvery == 0 || a.frames%a.catchEvery != 0 {
		return
	}
	cm, ok := pickCatch(f, a.rng, a.selected)
	if !ok {
		return
	}
	a.reqSeq++
	cm.ReqID = fmt.Sprintf("C_%d", a.reqSeq)
	if err := a.conn.WriteJSON(cm); err != nil {
		a.logger.Printf("send CATCH: %v", err)
	}
}

// pickCatch chooses a random visible fish, restricted to selected when set.
func pickCatch(f *protocol.FrameMsg, r *rand.Rand, selected string) (protocol.CatchMsg, bool) {
	total := 0
	for _, sp := range f.Species {
		if selected != "" && sp.Key != selected {
			continue
		}
		total += len(sp.Poses)
	}
	if total == 0 {
		return protocol.CatchMsg{}, false
	}
	n := r.Intn(total)
	for _, sp := range f.Species {
		if selected != "" && sp.Key != selected {
			continue
		}
		if n < len(sp.Poses) {
			return protocol.CatchMsg{
				Type:            protocol.TypeCatch,
				ProtocolVersion: protocol.Version,
				Species:         sp.Key,
				Slot:            sp.Poses[n].Slot,
				Selected:        selected,
			}, true
		}
		n -= len(sp.Poses)
	}
	return protocol.CatchMsg{}, false
}

// sweep moves the camera back and forth between Min and Max.
type sweep struct {
	Min    float64
	Max    float64
	Period float64
}

func (s sweep) At(sec float64) float64 {
	if s.Period <= 0 || s.Max <= s.Min {
		return s.Max
	}
	phase := 0.5 - 0.5*math.Cos(2*math.Pi*sec/s.Period)
	return s.Min + (s.Max-s.Min)*phase
}
