package service

import (
	"context"
	"testing"

	"velovis/internal/entity"
	"velovis/internal/model"
	"velovis/internal/permission"
)

func TestResolverMergesRolesAndSkipsUnknownKeys(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.registerActive(t, "ayse", "Correct123")

	extra := &entity.DbRole{Name: "SUPPORT"}
	if err := env.repo.CreateRole(ctx, extra); err != nil {
		t.Fatalf("create role: %v", err)
	}
	// Written straight to the store, as a stale row from an older catalog would be.
	if err := env.repo.ReplaceRolePermissions(ctx, extra.ID, []string{
		string(permission.OrdersReadAny),
		string(permission.OrdersReadOwn),
		"legacy:permission",
	}); err != nil {
		t.Fatalf("replace permissions: %v", err)
	}
	if err := env.repo.AddUserRole(ctx, user.ID, extra.ID); err != nil {
		t.Fatalf("add role: %v", err)
	}

	stored, err := env.repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	caller, err := NewPermissionResolver(env.repo).Resolve(ctx, stored)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if len(caller.Roles) != 2 || !caller.HasRole("SUPPORT") || !caller.HasRole(entity.RoleUser) {
		t.Fatalf("unexpected roles: %v", caller.Roles)
	}
	if caller.Permissions.Has("legacy:permission") {
		t.Fatal("keys outside the catalog must be ignored")
	}
	want := len(model.DefaultUserPermissions) + 1 // orders:read:own is shared, orders:read:any is new
	if caller.Permissions.Len() != want {
		t.Fatalf("expected %d distinct keys, got %v", want, caller.Permissions.Strings())
	}
	if caller.Email != "ayse@example.com" {
		t.Fatalf("unexpected email: %q", caller.Email)
	}
}
