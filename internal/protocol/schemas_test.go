package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"riverfish.ai/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var doc any
		if err := json.Unmarshal(b, &doc); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(doc); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	validate(compile("hello.schema.json"), protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "viewer",
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 8},
	})

	validate(compile("catch.schema.json"), protocol.CatchMsg{
		Type:            protocol.TypeCatch,
		ProtocolVersion: protocol.Version,
		ReqID:           "c1",
		Species:         "trout",
		Slot:            3,
		Selected:        "trout",
	})

	validate(compile("frame.schema.json"), protocol.FrameMsg{
		Type:            protocol.TypeFrame,
		ProtocolVersion: protocol.Version,
		Tick:            12,
		Clock:           0.2,
		Volume:          protocol.Box{Min: [3]float64{0, -6, -20}, Max: [3]float64{30, 0, 20}},
		Species: []protocol.SpeciesFrame{{
			Key:    "trout",
			Active: 1,
			Poses:  []protocol.Pose{{Slot: 0, ID: 7, Pos: [3]float64{1, -2, 3}, Rot: [4]float64{0, 0, 0, 1}}},
		}},
	})

	validate(compile("catch_result.schema.json"), protocol.CatchResultMsg{
		Type:            protocol.TypeCatchResult,
		ProtocolVersion: protocol.Version,
		Status:          "NOT_ACTIVE",
		Code:            protocol.ErrNotActive,
		Species:         "trout",
		Slot:            9,
		Active:          4,
	})
}

func TestSchemas_RejectNegativeSlot(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "catch.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var doc any
	_ = json.Unmarshal([]byte(`{"type":"CATCH","protocol_version":"1.0","species":"trout","slot":-1}`), &doc)
	if err := s.Validate(doc); err == nil {
		t.Fatalf("negative slot should be rejected")
	}
}
