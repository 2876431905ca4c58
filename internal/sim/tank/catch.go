package tank

import (
	"encoding/json"

	"riverfish.ai/internal/protocol"
)

type CatchStatus string

const (
	Caught         CatchStatus = "CAUGHT"
	NotActive      CatchStatus = "NOT_ACTIVE"
	UnknownSpecies CatchStatus = "UNKNOWN_SPECIES"
	Mismatch       CatchStatus = "MISMATCH"
)

// Code maps a status onto the wire error code; Caught has none.
func (s CatchStatus) Code() string {
	switch s {
	case NotActive:
		return protocol.ErrNotActive
	case UnknownSpecies:
		return protocol.ErrUnknownSpecies
	case Mismatch:
		return protocol.ErrMismatch
	}
	return ""
}

// CatchRequest targets one slot. Selected is the species the player is
// fishing for; empty accepts any species.
type CatchRequest struct {
	Species  string
	Slot     int
	Selected string
}

type CatchResult struct {
	Status  CatchStatus
	Species string
	Slot    int
	AgentID uint64
	Active  int
	Matched bool
}

type CatchEnvelope struct {
	Req  CatchRequest
	Resp chan CatchResult
}

// Catches accepts catch requests processed on the loop goroutine between ticks.
func (t *Tank) Catches() chan<- CatchEnvelope { return t.catches }

// Catch resolves a catch against the current populations. Only a matched
// catch on an active slot removes an agent.
func (t *Tank) Catch(req CatchRequest) CatchResult {
	res := CatchResult{
		Species: req.Species,
		Slot:    req.Slot,
		Matched: req.Selected == "" || req.Selected == req.Species,
	}
	pop, ok := t.byKey[req.Species]
	if !ok {
		res.Status = UnknownSpecies
		return res
	}
	res.Active = pop.ActiveCount()
	if _, ok := pop.At(req.Slot); !ok {
		res.Status = NotActive
		return res
	}
	if !res.Matched {
		res.Status = Mismatch
		return res
	}

	a, _ := pop.Catch(req.Slot)
	t.caught++
	res.Status = Caught
	res.AgentID = a.ID
	res.Active = pop.ActiveCount()

	n := RemovalNotice{
		Tick:    t.tick.Load(),
		Clock:   t.clock,
		Species: req.Species,
		AgentID: a.ID,
		Slot:    req.Slot,
		Active:  res.Active,
	}
	t.pendingRemovals = append(t.pendingRemovals, n)
	if t.catchLogger != nil {
		if err := t.catchLogger.WriteCatch(n); err != nil {
			t.logger.Printf("catch log: %v", err)
		}
	}
	t.broadcastRemoved(n)
	return res
}

func (t *Tank) broadcastRemoved(n RemovalNotice) {
	if len(t.sessions) == 0 {
		return
	}
	b, err := json.Marshal(protocol.RemovedMsg{
		Type:            protocol.TypeRemoved,
		ProtocolVersion: protocol.Version,
		Tick:            n.Tick,
		Species:         n.Species,
		AgentID:         n.AgentID,
		Active:          n.Active,
	})
	if err != nil {
		return
	}
	for _, s := range t.sessions {
		trySend(s.events, b)
	}
}

// CatchResultMsg renders a result for the wire.
func CatchResultMsg(reqID string, r CatchResult) protocol.CatchResultMsg {
	return protocol.CatchResultMsg{
		Type:            protocol.TypeCatchResult,
		ProtocolVersion: protocol.Version,
		ReqID:           reqID,
		Status:          string(r.Status),
		Code:            r.Status.Code(),
		Species:         r.Species,
		Slot:            r.Slot,
		AgentID:         r.AgentID,
		Active:          r.Active,
		Matched:         r.Matched,
	}
}
