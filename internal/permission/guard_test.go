package permission

import (
	"errors"
	"testing"
)

func TestRequire(t *testing.T) {
	shopper := &Caller{ID: "u1", Permissions: NewSet(OrdersReadOwn, CommentsCreate)}

	tests := []struct {
		name    string
		caller  *Caller
		keys    []Key
		allowed bool
	}{
		{name: "no requirement, no caller", caller: nil, keys: nil, allowed: true},
		{name: "no requirement", caller: shopper, keys: nil, allowed: true},
		{name: "single held key", caller: shopper, keys: []Key{CommentsCreate}, allowed: true},
		{name: "one of several", caller: shopper, keys: []Key{OrdersReadOwn, OrdersReadAny}, allowed: true},
		{name: "none held", caller: shopper, keys: []Key{ProductsCreate}, allowed: false},
		{name: "nil caller with requirement", caller: nil, keys: []Key{ProductsCreate}, allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Require(tt.caller, tt.keys...)
			if tt.allowed && err != nil {
				t.Fatalf("expected access, got %v", err)
			}
			if !tt.allowed && !errors.Is(err, ErrInsufficientPermission) {
				t.Fatalf("expected ErrInsufficientPermission, got %v", err)
			}
		})
	}
}

func TestRequirementOwnership(t *testing.T) {
	readOrder := Requirement{Keys: []Key{OrdersReadOwn, OrdersReadAny}, Any: OrdersReadAny}

	owner := &Caller{ID: "owner", Permissions: NewSet(OrdersReadOwn)}
	other := &Caller{ID: "other", Permissions: NewSet(OrdersReadOwn)}
	admin := &Caller{ID: "admin", Permissions: NewSet(OrdersReadAny)}

	if err := readOrder.Allows(other); err != nil {
		t.Fatalf("guard should admit the attempt: %v", err)
	}
	if err := readOrder.AllowsOn(other, "owner"); !errors.Is(err, ErrInsufficientPermission) {
		t.Fatalf("expected ownership rejection, got %v", err)
	}
	if err := readOrder.AllowsOn(owner, "owner"); err != nil {
		t.Fatalf("owner should read own order: %v", err)
	}
	if err := readOrder.AllowsOn(admin, "owner"); err != nil {
		t.Fatalf(":any holder should bypass ownership: %v", err)
	}
}

func TestRequireOwnershipWithoutOwner(t *testing.T) {
	c := &Caller{ID: "u1", Permissions: NewSet(CommentsDeleteOwn)}
	if err := RequireOwnership(c, "", CommentsDeleteAny); err == nil {
		t.Fatal("empty owner id must not match")
	}
	if err := RequireOwnership(nil, "u1", CommentsDeleteAny); err == nil {
		t.Fatal("nil caller must be rejected")
	}
}
