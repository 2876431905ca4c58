package tank

import (
	"encoding/json"
	"fmt"

	"riverfish.ai/internal/protocol"
)

type JoinRequest struct {
	Name     string
	FrameOut chan []byte
	EventOut chan []byte
	Resp     chan JoinResponse
}

type JoinResponse struct {
	SessionID string
	Welcome   protocol.WelcomeMsg
}

type session struct {
	name   string
	frames chan []byte
	events chan []byte
}

func (t *Tank) Join() chan<- JoinRequest { return t.join }
func (t *Tank) Leave() chan<- string     { return t.leave }

func (t *Tank) handleJoin(req JoinRequest) {
	t.nextSession++
	id := fmt.Sprintf("S%06d", t.nextSession)
	t.sessions[id] = &session{name: req.Name, frames: req.FrameOut, events: req.EventOut}
	resp := JoinResponse{SessionID: id, Welcome: t.welcome(id)}
	if req.Resp != nil {
		req.Resp <- resp
	}
}

func (t *Tank) handleLeave(id string) {
	delete(t.sessions, id)
}

func (t *Tank) welcome(sessionID string) protocol.WelcomeMsg {
	w := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		Tank: protocol.TankParams{
			ID:             t.cfg.ID,
			TickRateHz:     t.tune.TickRateHz,
			IndexRefreshHz: t.tune.IndexRefreshHz,
			Volume:         boxMsg(t),
		},
		CatalogDigest: t.cfg.CatalogDigest,
	}
	for _, pop := range t.pops {
		sp := pop.species
		info := protocol.SpeciesInfo{
			Key:      sp.Key(),
			Name:     sp.Def.Name,
			Capacity: pop.Capacity(),
			Active:   pop.ActiveCount(),
			Render:   protocol.RenderInfo{Kind: string(sp.Render.Kind)},
		}
		if sp.Render.Kind == RenderModel {
			info.Render.Model = sp.Render.Model.Path
		} else {
			fb := sp.Render.Fallback
			info.Render.Fallback = &protocol.Primitive{Shape: fb.Shape, Length: fb.Length, Radius: fb.Radius}
		}
		w.Species = append(w.Species, info)
	}
	return w
}

func boxMsg(t *Tank) protocol.Box {
	return protocol.Box{Min: t.box.Min.Array(), Max: t.box.Max.Array()}
}

// Frame builds the pose frame for the current state.
func (t *Tank) Frame(tick uint64) protocol.FrameMsg {
	f := protocol.FrameMsg{
		Type:            protocol.TypeFrame,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Clock:           t.clock,
		Volume:          boxMsg(t),
		Species:         make([]protocol.SpeciesFrame, 0, len(t.pops)),
	}
	for _, pop := range t.pops {
		sf := protocol.SpeciesFrame{
			Key:    pop.species.Key(),
			Active: pop.ActiveCount(),
			Poses:  make([]protocol.Pose, 0, pop.ActiveCount()),
		}
		for _, p := range pop.Poses() {
			sf.Poses = append(sf.Poses, protocol.Pose{Slot: p.Slot, ID: p.ID, Pos: p.Pos.Array(), Rot: p.Rot.Array()})
		}
		f.Species = append(f.Species, sf)
	}
	return f
}

func (t *Tank) broadcastFrame(tick uint64) {
	if len(t.sessions) == 0 {
		return
	}
	b, err := json.Marshal(t.Frame(tick))
	if err != nil {
		t.logger.Printf("frame marshal: %v", err)
		return
	}
	for _, s := range t.sessions {
		sendLatest(s.frames, b)
	}
}

func sendLatest(ch chan []byte, b []byte) {
	if ch == nil {
		return
	}
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

func trySend(ch chan []byte, b []byte) {
	if ch == nil {
		return
	}
	select {
	case ch <- b:
	default:
	}
}
