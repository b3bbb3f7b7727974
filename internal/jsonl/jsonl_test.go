package jsonl

import (
	"path/filepath"
	"testing"

	"github.com/memorix-dev/memorix-core/internal/types"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	entities := []*types.Entity{
		{Name: "auth", EntityType: "module", Observations: []string{"uses JWT"}},
	}
	relations := []*types.Relation{
		{From: "auth", To: "session", RelationType: "depends-on"},
	}

	data, err := EncodeGraph(entities, relations)
	if err != nil {
		t.Fatalf("EncodeGraph: %v", err)
	}

	gotEntities, gotRelations, err := ReadGraphData(data)
	if err != nil {
		t.Fatalf("ReadGraphData: %v", err)
	}
	if len(gotEntities) != 1 || gotEntities[0].Name != "auth" {
		t.Fatalf("unexpected entities: %+v", gotEntities)
	}
	if len(gotRelations) != 1 || gotRelations[0].To != "session" {
		t.Fatalf("unexpected relations: %+v", gotRelations)
	}
}

func TestReadGraphFileMissingIsEmpty(t *testing.T) {
	dir := t.TempDir()
	entities, relations, err := ReadGraphFile(filepath.Join(dir, "graph.jsonl"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if entities != nil || relations != nil {
		t.Fatalf("expected empty graph, got %v / %v", entities, relations)
	}
}

func TestReadGraphDataRejectsUnknownType(t *testing.T) {
	_, _, err := ReadGraphData([]byte(`{"type":"bogus"}` + "\n"))
	if err == nil {
		t.Fatal("expected error for unknown line type")
	}
}
