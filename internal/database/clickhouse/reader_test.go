package clickhouse

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"can-decoder/internal/models"
)

func TestBuildSignalQueryFilters(t *testing.T) {
	start := time.Unix(100, 0)
	id := uint32(0x7B)
	q, args := buildSignalQuery("can_signals", models.QueryParams{
		StartTime: &start,
		CANID:     &id,
		Message:   "Engine",
		Signal:    "Speed",
		Limit:     10,
		Offset:    20,
	})

	for _, frag := range []string{
		"FROM can_signals WHERE 1=1",
		"AND timestamp >= ?",
		"AND can_id = ?",
		"AND message = ?",
		"AND signal = ?",
		"ORDER BY timestamp DESC LIMIT ? OFFSET ?",
	} {
		if !strings.Contains(q, frag) {
			t.Fatalf("query %q missing %q", q, frag)
		}
	}
	if strings.Contains(q, "interface = ?") || strings.Contains(q, "timestamp <= ?") {
		t.Fatalf("unset filters leaked into %q", q)
	}
	want := []any{start, uint32(0x7B), "Engine", "Speed", 10, 20}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("args = %v", args)
	}
}

func TestBuildSignalQueryNoFilters(t *testing.T) {
	q, args := buildSignalQuery("t", models.QueryParams{})
	if !strings.HasSuffix(q, "WHERE 1=1 ORDER BY timestamp DESC") || len(args) != 0 {
		t.Fatalf("query=%q args=%v", q, args)
	}
}
