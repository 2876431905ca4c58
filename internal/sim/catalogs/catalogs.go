package catalogs

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed species.schema.json
var speciesSchemaJSON string

type Catalogs struct {
	Species SpeciesCatalog
}

type SpeciesCatalog struct {
	// Keys in load order (sorted), index = palette id.
	Keys   []string
	Index  map[string]uint16
	Defs   map[string]SpeciesDef
	Digest string
}

// SpeciesDef is one immutable species entry. Class names are resolved against tuning scales.
type SpeciesDef struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Size      string `json:"size"`
	Speed     string `json:"speed"`
	Abundance string `json:"abundance"`

	// Optional preferred strata; empty means uniform on that axis.
	Shore  string `json:"shore,omitempty"`
	Column string `json:"column,omitempty"`

	// ForwardAxis is the model-space axis the mesh faces along ("+x","-x","+y","-y","+z","-z").
	ForwardAxis string `json:"forward_axis,omitempty"`
	Model       string `json:"model,omitempty"`

	// Count overrides the abundance class when > 0.
	Count int `json:"count,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadSpecies(filepath.Join(configDir, "species.json"), &c.Species); err != nil {
		return nil, err
	}
	return &c, nil
}

func loadSpecies(path string, out *SpeciesCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return parseSpecies(raw, out)
}

func parseSpecies(raw []byte, out *SpeciesCatalog) error {
	out.Digest = Digest(raw)

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("species.json: %w", err)
	}
	if err := speciesSchema().Validate(doc); err != nil {
		return fmt.Errorf("species.json: %w", err)
	}

	var defs []SpeciesDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("species.json: %w", err)
	}
	out.Defs = map[string]SpeciesDef{}
	for _, d := range defs {
		d.Key = strings.TrimSpace(d.Key)
		if d.Key == "" {
			return fmt.Errorf("species.json: empty key")
		}
		if _, dup := out.Defs[d.Key]; dup {
			return fmt.Errorf("species.json: duplicate key %q", d.Key)
		}
		if d.Name == "" {
			d.Name = d.Key
		}
		if d.ForwardAxis == "" {
			d.ForwardAxis = "+z"
		}
		out.Defs[d.Key] = d
	}

	keys := make([]string, 0, len(out.Defs))
	for k := range out.Defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out.Keys = keys
	out.Index = make(map[string]uint16, len(keys))
	for i, k := range keys {
		out.Index[k] = uint16(i)
	}
	return nil
}

// Ordered returns the definitions in palette order.
func (c SpeciesCatalog) Ordered() []SpeciesDef {
	out := make([]SpeciesDef, 0, len(c.Keys))
	for _, k := range c.Keys {
		out = append(out, c.Defs[k])
	}
	return out
}

func speciesSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("species.schema.json", strings.NewReader(speciesSchemaJSON)); err != nil {
		panic(err)
	}
	return c.MustCompile("species.schema.json")
}

// Digest is the hex sha256 used for catalog fingerprints.
func Digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
