package permission

import (
	"sort"
	"testing"
)

func TestCatalogIsSortedAndKnown(t *testing.T) {
	all := All()
	if len(all) == 0 {
		t.Fatal("expected a non-empty catalog")
	}
	if !sort.SliceIsSorted(all, func(i, j int) bool { return all[i] < all[j] }) {
		t.Fatal("All() must be sorted")
	}
	for _, k := range all {
		if !IsKnown(k) {
			t.Fatalf("%s listed but not known", k)
		}
		if k.Resource() == "" {
			t.Fatalf("%s has no resource segment", k)
		}
	}
}

func TestCategoriesReturnsCopy(t *testing.T) {
	cats := Categories()
	cats["orders"][0] = "tampered"
	cats["bogus"] = []Key{"bogus:key"}

	if IsKnown("tampered") || IsKnown("bogus:key") {
		t.Fatal("mutating the returned map must not affect the catalog")
	}
	if Categories()["orders"][0] == "tampered" {
		t.Fatal("catalog slice was aliased")
	}
}

func TestKeyScope(t *testing.T) {
	tests := []struct {
		key   Key
		scope string
	}{
		{OrdersReadOwn, ScopeOwn},
		{OrdersReadAny, ScopeAny},
		{CategoriesUpdate, ""},
		{UsersAssignRole, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			if got := tt.key.Scope(); got != tt.scope {
				t.Fatalf("expected scope %q, got %q", tt.scope, got)
			}
			if tt.key.IsScoped() != (tt.scope != "") {
				t.Fatalf("IsScoped disagrees with Scope for %s", tt.key)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	invalid := Validate([]string{"products:create", "products:fly", "orders:read:any", ""})
	if len(invalid) != 2 || invalid[0] != "products:fly" || invalid[1] != "" {
		t.Fatalf("unexpected invalid keys: %#v", invalid)
	}
	if _, err := Parse(" roles:read "); err != nil {
		t.Fatalf("expected trimmed key to parse: %v", err)
	}
	if _, err := Parse("roles:fly"); err == nil {
		t.Fatal("expected unknown key error")
	}
}

func TestSetDeduplicatesAndSorts(t *testing.T) {
	s := NewSet(OrdersReadOwn, CommentsCreate, OrdersReadOwn, "")
	s.Add(CommentsCreate)
	if s.Len() != 2 {
		t.Fatalf("expected 2 members, got %d", s.Len())
	}
	got := s.Strings()
	if got[0] != "comments:create" || got[1] != "orders:read:own" {
		t.Fatalf("unexpected order: %v", got)
	}
}
