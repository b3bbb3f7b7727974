// Package jsonl reads and writes graph.jsonl (spec §4.B, §6): one JSON
// object per line, each tagged "entity" or "relation", kept line-by-line
// compatible with the format used by the "official memory server" project.
package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/memorix-dev/memorix-core/internal/types"
)

// Line is the on-disk shape of one graph.jsonl record. Type selects which
// fields are populated: the entity fields or the relation fields.
type Line struct {
	Type     string          `json:"type"`
	Name     string          `json:"name,omitempty"`
	EntityType string        `json:"entityType,omitempty"`
	Observations []string    `json:"observations,omitempty"`
	From     string          `json:"from,omitempty"`
	To       string          `json:"to,omitempty"`
	RelationType string      `json:"relationType,omitempty"`
}

const (
	lineTypeEntity   = "entity"
	lineTypeRelation = "relation"
)

func fromEntity(e *types.Entity) Line {
	return Line{Type: lineTypeEntity, Name: e.Name, EntityType: e.EntityType, Observations: e.Observations}
}

func fromRelation(r *types.Relation) Line {
	return Line{Type: lineTypeRelation, From: r.From, To: r.To, RelationType: r.RelationType}
}

// ReadGraphFile reads a graph.jsonl file into entities and relations. A
// missing file is treated as an empty graph, not an error (spec §7:
// IntegrityError is reserved for files that exist but fail to parse).
func ReadGraphFile(path string) ([]*types.Entity, []*types.Relation, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is the engine's own data root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("jsonl: read %s: %w", path, err)
	}
	return ReadGraphData(data)
}

// ReadGraphData parses graph.jsonl content already in memory.
func ReadGraphData(data []byte) ([]*types.Entity, []*types.Relation, error) {
	var entities []*types.Entity
	var relations []*types.Relation

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		var line Line
		if err := json.Unmarshal(raw, &line); err != nil {
			return nil, nil, fmt.Errorf("jsonl: line %d: %w", lineNum, err)
		}

		switch line.Type {
		case lineTypeEntity:
			entities = append(entities, &types.Entity{
				Name:         line.Name,
				EntityType:   line.EntityType,
				Observations: append([]string(nil), line.Observations...),
			})
		case lineTypeRelation:
			relations = append(relations, &types.Relation{
				From:         line.From,
				To:           line.To,
				RelationType: line.RelationType,
			})
		default:
			return nil, nil, fmt.Errorf("jsonl: line %d: unknown type %q", lineNum, line.Type)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("jsonl: scan: %w", err)
	}

	return entities, relations, nil
}

// EncodeGraph renders entities and relations as graph.jsonl bytes, entities
// before relations, each in the order given.
func EncodeGraph(entities []*types.Entity, relations []*types.Relation) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for _, e := range entities {
		if err := enc.Encode(fromEntity(e)); err != nil {
			return nil, fmt.Errorf("jsonl: encode entity %q: %w", e.Name, err)
		}
	}
	for _, r := range relations {
		if err := enc.Encode(fromRelation(r)); err != nil {
			return nil, fmt.Errorf("jsonl: encode relation %s->%s: %w", r.From, r.To, err)
		}
	}
	return buf.Bytes(), nil
}
