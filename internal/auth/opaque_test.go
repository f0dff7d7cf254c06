package auth

import "testing"

func TestOpaqueTokenRoundTrip(t *testing.T) {
	raw, err := NewOpaqueToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raw) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(raw))
	}

	stored := HashToken(raw)
	if stored == raw {
		t.Fatal("stored digest must differ from the raw token")
	}
	if !TokenMatches(raw, stored) {
		t.Fatal("expected raw token to match its digest")
	}

	other, err := NewOpaqueToken()
	if err != nil {
		t.Fatal(err)
	}
	if other == raw {
		t.Fatal("expected distinct tokens")
	}
	if TokenMatches(other, stored) {
		t.Fatal("different token must not match")
	}
}
