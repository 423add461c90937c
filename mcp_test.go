package pgdesk

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestRequestLength(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args map[string]any
		want int
	}{
		{
			name: "single argument",
			args: map[string]any{"sql": "SELECT 1"},
			want: len(`{"sql":"SELECT 1"}`),
		},
		{
			name: "no arguments",
			args: nil,
			want: 0,
		},
		{
			name: "empty arguments",
			args: map[string]any{},
			want: 0,
		},
	}
	for _, tt := range tests {
		req := mcp.CallToolRequest{
			Params: mcp.CallToolParams{Name: "query", Arguments: tt.args},
		}
		if got := requestLength(req); got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestResultLength(t *testing.T) {
	t.Parallel()

	payload := `{"command":"SELECT","row_count":0,"rows":[]}`
	if got := resultLength(mcp.NewToolResultText(payload)); got != len(payload) {
		t.Errorf("text result: got %d, want %d", got, len(payload))
	}
	if got := resultLength(nil); got != 0 {
		t.Errorf("nil result: got %d, want 0", got)
	}
	if got := resultLength(&mcp.CallToolResult{}); got != 0 {
		t.Errorf("empty result: got %d, want 0", got)
	}
}
