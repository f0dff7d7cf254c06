// Package permission holds the compiled permission catalog, the per-request
// caller value and the access guard evaluated before business operations.
package permission

import (
	"fmt"
	"sort"
	"strings"
)

// Key identifies one capability, e.g. "products:create" or "orders:read:own".
type Key string

const (
	ScopeOwn = "own"
	ScopeAny = "any"
)

const (
	UsersCreate     Key = "users:create"
	UsersRead       Key = "users:read"
	UsersUpdate     Key = "users:update"
	UsersDelete     Key = "users:delete"
	UsersAssignRole Key = "users:assign_role"

	RolesCreate Key = "roles:create"
	RolesRead   Key = "roles:read"
	RolesUpdate Key = "roles:update"
	RolesDelete Key = "roles:delete"

	PermissionsRead Key = "permissions:read"

	CategoriesCreate Key = "categories:create"
	CategoriesRead   Key = "categories:read"
	CategoriesUpdate Key = "categories:update"
	CategoriesDelete Key = "categories:delete"

	ProductsCreate Key = "products:create"
	ProductsRead   Key = "products:read"
	ProductsUpdate Key = "products:update"
	ProductsDelete Key = "products:delete"

	ProductPhotosCreate Key = "product_photos:create"
	ProductPhotosUpdate Key = "product_photos:update"
	ProductPhotosDelete Key = "product_photos:delete"

	CommentsCreate    Key = "comments:create"
	CommentsRead      Key = "comments:read"
	CommentsUpdateOwn Key = "comments:update:own"
	CommentsDeleteOwn Key = "comments:delete:own"
	CommentsDeleteAny Key = "comments:delete:any"

	CartsReadOwn   Key = "carts:read:own"
	CartsUpdateOwn Key = "carts:update:own"

	OrdersCreate    Key = "orders:create"
	OrdersCreateOwn Key = "orders:create:own"
	OrdersReadOwn   Key = "orders:read:own"
	OrdersReadAny   Key = "orders:read:any"
	OrdersUpdateAny Key = "orders:update:any"
)

// catalog is the closed set of known keys grouped by resource category. It is
// never mutated after package initialisation; accessors hand out copies.
var catalog = map[string][]Key{
	"users":          {UsersCreate, UsersRead, UsersUpdate, UsersDelete, UsersAssignRole},
	"roles":          {RolesCreate, RolesRead, RolesUpdate, RolesDelete},
	"permissions":    {PermissionsRead},
	"categories":     {CategoriesCreate, CategoriesRead, CategoriesUpdate, CategoriesDelete},
	"products":       {ProductsCreate, ProductsRead, ProductsUpdate, ProductsDelete},
	"product_photos": {ProductPhotosCreate, ProductPhotosUpdate, ProductPhotosDelete},
	"comments":       {CommentsCreate, CommentsRead, CommentsUpdateOwn, CommentsDeleteOwn, CommentsDeleteAny},
	"carts":          {CartsReadOwn, CartsUpdateOwn},
	"orders":         {OrdersCreate, OrdersCreateOwn, OrdersReadOwn, OrdersReadAny, OrdersUpdateAny},
}

var known = func() map[Key]struct{} {
	m := make(map[Key]struct{})
	for _, keys := range catalog {
		for _, k := range keys {
			m[k] = struct{}{}
		}
	}
	return m
}()

// All returns every catalog key, sorted.
func All() []Key {
	out := make([]Key, 0, len(known))
	for k := range known {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Categories returns the catalog grouped by resource; the result is a copy.
func Categories() map[string][]Key {
	out := make(map[string][]Key, len(catalog))
	for name, keys := range catalog {
		out[name] = append([]Key(nil), keys...)
	}
	return out
}

// IsKnown reports whether k belongs to the catalog.
func IsKnown(k Key) bool {
	_, ok := known[k]
	return ok
}

// Validate returns the subset of raw keys that are not in the catalog, in input order.
func Validate(raw []string) []string {
	var invalid []string
	for _, r := range raw {
		if !IsKnown(Key(r)) {
			invalid = append(invalid, r)
		}
	}
	return invalid
}

// Parse converts a raw string into a catalog key.
func Parse(raw string) (Key, error) {
	k := Key(strings.TrimSpace(raw))
	if !IsKnown(k) {
		return "", fmt.Errorf("unknown permission key %q", raw)
	}
	return k, nil
}

// Resource is the leading category segment of the key.
func (k Key) Resource() string {
	resource, _, _ := strings.Cut(string(k), ":")
	return resource
}

// Scope returns "own", "any" or "" for plain keys.
func (k Key) Scope() string {
	parts := strings.Split(string(k), ":")
	if len(parts) < 3 {
		return ""
	}
	switch last := parts[len(parts)-1]; last {
	case ScopeOwn, ScopeAny:
		return last
	default:
		return ""
	}
}

// IsScoped reports whether k carries an :own or :any suffix.
func (k Key) IsScoped() bool {
	return k.Scope() != ""
}

func (k Key) String() string {
	return string(k)
}
