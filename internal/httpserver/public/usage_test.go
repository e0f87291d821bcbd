package public

import (
	"testing"

	"github.com/voicepartnerai/platform/internal/store"
)

func TestEndpointBreakdownIncludesErrorCount(t *testing.T) {
	rows := []store.EndpointUsage{
		{Endpoint: "/v1/calls", Requests: 120, ErrorCount: 7, AvgLatencyMs: 41.5},
		{Endpoint: "/v1/usage", Requests: 30, ErrorCount: 0, AvgLatencyMs: 12.0},
	}

	out := endpointBreakdown(rows)
	if len(out) != 2 {
		t.Fatalf("rows = %d, want 2", len(out))
	}
	if got := out[0]["error_count"]; got != int64(7) {
		t.Fatalf("error_count = %v, want 7", got)
	}
	if got := out[0]["requests"]; got != int64(120) {
		t.Fatalf("requests = %v, want 120", got)
	}
	if got := out[1]["error_count"]; got != int64(0) {
		t.Fatalf("error_count = %v, want 0", got)
	}
}

func TestEndpointBreakdownEmpty(t *testing.T) {
	if out := endpointBreakdown(nil); len(out) != 0 {
		t.Fatalf("expected empty slice, got %v", out)
	}
}
