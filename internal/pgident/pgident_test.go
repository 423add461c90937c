package pgident

import "testing"

func TestNeedsQuoting(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"plain lowercase", "users", false},
		{"underscore", "user_roles", false},
		{"digits", "t2", false},
		{"mixed case", "Users", false},
		{"dot", "public.users", true},
		{"space", "my table", true},
		{"double quote", `my"table`, true},
		{"semicolon injection", "users; DROP TABLE x", true},
		{"dash", "my-table", true},
		{"empty", "", true},
		{"unicode", "tablé", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NeedsQuoting(tt.in); got != tt.want {
				t.Errorf("NeedsQuoting(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestQuote(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"users", `"users"`},
		{`my"table`, `"my""table"`},
		{`a""b`, `"a""""b"`},
		{"public.users", `"public.users"`},
	}
	for _, tt := range tests {
		if got := Quote(tt.in); got != tt.want {
			t.Errorf("Quote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	t.Parallel()
	if got := QuoteIfNeeded("users"); got != "users" {
		t.Errorf("expected plain identifier untouched, got %s", got)
	}
	if got := QuoteIfNeeded("my table"); got != `"my table"` {
		t.Errorf("expected quoted form, got %s", got)
	}
	if got := QuoteIfNeeded("a.b"); got != `"a.b"` {
		t.Errorf("expected dotted name quoted, got %s", got)
	}
}
