package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"riverfish.ai/internal/protocol"
	"riverfish.ai/internal/sim/tank"
)

// Tank is the part of the simulation a renderer connection talks to.
type Tank interface {
	Join() chan<- tank.JoinRequest
	Leave() chan<- string
	Catches() chan<- tank.CatchEnvelope
	SetCamera(x float64)
}

// StatusRejected marks catch requests refused before reaching the tank.
const StatusRejected = "REJECTED"

type Server struct {
	tank Tank
	log  *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(t Tank, logger *log.Logger) *Server {
	return &Server{
		tank: t,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

type conn struct {
	frames  chan []byte
	events  chan []byte
	replies chan []byte
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		sessionID, c := s.handshake(ws)
		if sessionID == "" {
			return
		}
		if s.log != nil {
			s.log.Printf("renderer session %s connected from %s", sessionID, r.RemoteAddr)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine. Replies and events go out ahead of frames.
		go func() {
			for {
				var b []byte
				select {
				case <-ctx.Done():
					return
				case b = <-c.replies:
				case b = <-c.events:
				default:
					select {
					case <-ctx.Done():
						return
					case b = <-c.replies:
					case b = <-c.events:
					case b = <-c.frames:
					}
				}
				_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}()

		// Reader loop.
		for {
			_ = ws.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := ws.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.ProtocolVersion != protocol.Version {
				continue
			}
			switch base.Type {
			case protocol.TypeCamera:
				var cam protocol.CameraMsg
				if err := json.Unmarshal(msg, &cam); err != nil {
					continue
				}
				s.tank.SetCamera(cam.CameraX)
			case protocol.TypeCatch:
				var cm protocol.CatchMsg
				if err := json.Unmarshal(msg, &cm); err != nil {
					continue
				}
				s.handleCatch(ctx, c, cm)
			}
		}

		// Cleanup.
		s.tank.Leave() <- sessionID
		if s.log != nil {
			s.log.Printf("renderer session %s disconnected", sessionID)
		}
	}
}

func (s *Server) handleCatch(ctx context.Context, c *conn, cm protocol.CatchMsg) {
	species := strings.TrimSpace(cm.Species)
	if species == "" || cm.Slot < 0 {
		s.reply(c, rejected(cm, protocol.ErrBadRequest))
		return
	}
	resp := make(chan tank.CatchResult, 1)
	env := tank.CatchEnvelope{
		Req:  tank.CatchRequest{Species: species, Slot: cm.Slot, Selected: strings.TrimSpace(cm.Selected)},
		Resp: resp,
	}
	select {
	case s.tank.Catches() <- env:
	default:
		s.reply(c, rejected(cm, protocol.ErrBusy))
		return
	}
	select {
	case res := <-resp:
		s.reply(c, tank.CatchResultMsg(cm.ReqID, res))
	case <-ctx.Done():
	}
}

func rejected(cm protocol.CatchMsg, code string) protocol.CatchResultMsg {
	return protocol.CatchResultMsg{
		Type:            protocol.TypeCatchResult,
		ProtocolVersion: protocol.Version,
		ReqID:           cm.ReqID,
		Status:          StatusRejected,
		Code:            code,
		Species:         cm.Species,
		Slot:            cm.Slot,
	}
}

func (s *Server) reply(c *conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.replies <- b:
	default:
	}
}

func (s *Server) handshake(ws *websocket.Conn) (string, *conn) {
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := ws.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}
	if hello.ClientName == "" {
		hello.ClientName = "renderer"
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 32
	}
	if maxQ > 256 {
		maxQ = 256
	}
	c := &conn{
		frames:  make(chan []byte, 1),
		events:  make(chan []byte, maxQ),
		replies: make(chan []byte, maxQ),
	}

	respCh := make(chan tank.JoinResponse, 1)
	s.tank.Join() <- tank.JoinRequest{
		Name:     hello.ClientName,
		FrameOut: c.frames,
		EventOut: c.events,
		Resp:     respCh,
	}
	resp := <-respCh

	if err := writeJSON(ws, resp.Welcome); err != nil {
		s.tank.Leave() <- resp.SessionID
		return "", nil
	}
	return resp.SessionID, c
}

func writeJSON(ws *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return ws.WriteMessage(websocket.TextMessage, b)
}
