package suggest

import (
	"reflect"
	"testing"
)

func TestTransposedTypo(t *testing.T) {
	t.Parallel()
	got := Tables("usres", []string{"users", "user_roles", "products"}, 3)
	want := []string{"users", "user_roles"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestExactPrefixRanksFirst(t *testing.T) {
	t.Parallel()
	got := Tables("ord", []string{"customer_orders", "orders", "ordinals"}, 3)
	if len(got) == 0 {
		t.Fatal("expected suggestions")
	}
	// "orders" and "ordinals" are exact prefix matches; the substring match
	// "customer_orders" must rank last.
	if got[len(got)-1] != "customer_orders" {
		t.Errorf("expected substring match to rank last, got %v", got)
	}
	if got[0] != "orders" {
		t.Errorf("expected shorter prefix match first, got %v", got)
	}
}

func TestShorterNameWinsTies(t *testing.T) {
	t.Parallel()
	got := Tables("use", []string{"user_sessions", "users"}, 3)
	want := []string{"users", "user_sessions"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCapAtMax(t *testing.T) {
	t.Parallel()
	existing := []string{"usa", "usb", "usc", "usd", "use"}
	got := Tables("usx", existing, 3)
	if len(got) != 3 {
		t.Errorf("expected 3 suggestions, got %d: %v", len(got), got)
	}
}

func TestNoMatch(t *testing.T) {
	t.Parallel()
	got := Tables("zzz", []string{"users", "products"}, 3)
	if len(got) != 0 {
		t.Errorf("expected no suggestions, got %v", got)
	}
}

func TestCaseInsensitive(t *testing.T) {
	t.Parallel()
	got := Tables("USERS", []string{"Users"}, 3)
	if len(got) != 1 || got[0] != "Users" {
		t.Errorf("expected [Users], got %v", got)
	}
}

func TestShortRequestedName(t *testing.T) {
	t.Parallel()
	got := Tables("us", []string{"users", "products"}, 3)
	if len(got) != 1 || got[0] != "users" {
		t.Errorf("expected [users], got %v", got)
	}
}

func TestEmptyInputs(t *testing.T) {
	t.Parallel()
	if got := Tables("", []string{"users"}, 3); got != nil {
		t.Errorf("expected nil for empty requested name, got %v", got)
	}
	if got := Tables("users", nil, 3); len(got) != 0 {
		t.Errorf("expected no suggestions for empty table list, got %v", got)
	}
	if got := Tables("users", []string{"users"}, 0); got != nil {
		t.Errorf("expected nil for max=0, got %v", got)
	}
}
