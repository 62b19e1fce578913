package catalogs

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"tattletale/internal/sim/model"
)

// FileName is the catalog file inside a config directory.
const FileName = "interactions.json"

// ErrInvalid wraps every validation failure reported by Load.
var ErrInvalid = errors.New("invalid interaction catalog")

//go:embed interactions.schema.json
var schemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("interactions.schema.json", schemaJSON)
	})
	return schema, schemaErr
}

type definitionJSON struct {
	Prototype    prototypeJSON   `json:"prototype"`
	Requirements requirementJSON `json:"requirements"`
	Tendencies   tendencyJSON    `json:"tendencies"`
}

type prototypeJSON struct {
	Name               string                     `json:"name"`
	Description        string                     `json:"description"`
	PassiveDescription string                     `json:"passive_description"`
	ActiveDescription  string                     `json:"active_description"`
	AbsoluteInterest   int                        `json:"absolute_interest"`
	Tags               []string                   `json:"tags"`
	ParticipantCount   int                        `json:"participant_count"`
	Wealth             []float64                  `json:"wealth"`
	Emotions           []map[string]float64       `json:"emotions"`
	Relationships      [][]relationshipEffectJSON `json:"relationships"`
}

type relationshipEffectJSON struct {
	Participant int                `json:"participant"`
	Changes     map[string]float64 `json:"changes"`
}

type requirementJSON struct {
	Context       string               `json:"context"`
	Day           int                  `json:"day"`
	GoalType      string               `json:"goal_type"`
	Emotions      []map[string]float64 `json:"emotions"`
	Relationships []map[string]float64 `json:"relationships"`
}

type tendencyJSON struct {
	Contexts      map[string]float64   `json:"contexts"`
	Wealth        float64              `json:"wealth"`
	Emotions      map[string]float64   `json:"emotions"`
	Relationships []map[string]float64 `json:"relationships"`
}

// Load reads <configDir>/interactions.json.
func Load(configDir string) (*Catalog, error) {
	return LoadFile(filepath.Join(configDir, FileName))
}

func LoadFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return c, nil
}

// Parse validates raw catalog JSON against the schema and binds it.
func Parse(raw []byte) (*Catalog, error) {
	s, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var entries []definitionJSON
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	c := &Catalog{Defs: make([]Definition, 0, len(entries))}
	for i, e := range entries {
		d, err := e.bind()
		if err != nil {
			return nil, fmt.Errorf("%w: definition %d: %v", ErrInvalid, i, err)
		}
		d.ID = i
		d.normalize()
		if err := d.validate(); err != nil {
			return nil, fmt.Errorf("%w: definition %d: %v", ErrInvalid, i, err)
		}
		c.Defs = append(c.Defs, d)
	}
	c.Digest = sha256Hex(raw)
	return c, nil
}

func (e definitionJSON) bind() (Definition, error) {
	var d Definition
	n := e.Prototype.ParticipantCount

	p := &d.Prototype
	p.Name = e.Prototype.Name
	p.Description = e.Prototype.Description
	p.PassiveDescription = e.Prototype.PassiveDescription
	p.ActiveDescription = e.Prototype.ActiveDescription
	p.AbsoluteInterest = e.Prototype.AbsoluteInterest
	p.Tags = append([]string(nil), e.Prototype.Tags...)
	p.ParticipantCount = n
	if len(e.Prototype.Wealth) > n || len(e.Prototype.Emotions) > n || len(e.Prototype.Relationships) > n {
		return d, fmt.Errorf("%s: prototype lists more than %d participants", p.Name, n)
	}
	p.Wealth = append([]float64(nil), e.Prototype.Wealth...)
	for _, m := range e.Prototype.Emotions {
		v, err := emotionVector(m)
		if err != nil {
			return d, err
		}
		p.Emotions = append(p.Emotions, v)
	}
	for slot, effects := range e.Prototype.Relationships {
		byOther := make(map[int][model.RelationshipCount]float64, len(effects))
		for _, eff := range effects {
			if _, dup := byOther[eff.Participant]; dup {
				return d, fmt.Errorf("%s: participant %d lists slot %d twice", p.Name, slot, eff.Participant)
			}
			v, err := relationshipVector(eff.Changes)
			if err != nil {
				return d, err
			}
			byOther[eff.Participant] = v
		}
		p.Relationships = append(p.Relationships, byOther)
	}

	r := &d.Requirement
	var err error
	if r.Context, err = model.ParseContextType(e.Requirements.Context); err != nil {
		return d, err
	}
	if r.Goal, err = model.ParseGoalType(e.Requirements.GoalType); err != nil {
		return d, err
	}
	r.Day = e.Requirements.Day
	if len(e.Requirements.Emotions) > n || len(e.Requirements.Relationships) > n-1 {
		return d, fmt.Errorf("%s: requirements list more than %d participants", p.Name, n)
	}
	for _, m := range e.Requirements.Emotions {
		v, err := emotionVector(m)
		if err != nil {
			return d, err
		}
		r.Emotions = append(r.Emotions, v)
	}
	for _, m := range e.Requirements.Relationships {
		v, err := relationshipVector(m)
		if err != nil {
			return d, err
		}
		r.Relationships = append(r.Relationships, v)
	}

	t := &d.Tendency
	for k, v := range e.Tendencies.Contexts {
		ct, err := model.ParseContextType(k)
		if err != nil || ct == model.ContextAny {
			return d, fmt.Errorf("%s: bad tendency context %q", p.Name, k)
		}
		t.Contexts[ct] = v
	}
	t.Wealth = e.Tendencies.Wealth
	if t.Emotions, err = emotionVector(e.Tendencies.Emotions); err != nil {
		return d, err
	}
	if len(e.Tendencies.Relationships) > n-1 {
		return d, fmt.Errorf("%s: tendencies list more than %d participants", p.Name, n)
	}
	for _, m := range e.Tendencies.Relationships {
		v, err := relationshipVector(m)
		if err != nil {
			return d, err
		}
		t.Relationships = append(t.Relationships, v)
	}
	return d, nil
}

func emotionVector(m map[string]float64) ([model.EmotionCount]float64, error) {
	var out [model.EmotionCount]float64
	for _, k := range sortedKeys(m) {
		et, err := model.ParseEmotionType(k)
		if err != nil {
			return out, err
		}
		out[et] = m[k]
	}
	return out, nil
}

func relationshipVector(m map[string]float64) ([model.RelationshipCount]float64, error) {
	var out [model.RelationshipCount]float64
	for _, k := range sortedKeys(m) {
		rt, err := model.ParseRelationshipType(k)
		if err != nil {
			return out, err
		}
		out[rt] = m[k]
	}
	return out, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
