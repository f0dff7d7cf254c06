package permission

import "errors"

// ErrInsufficientPermission is returned by the guard. It never says which key was missing.
var ErrInsufficientPermission = errors.New("insufficient permission")

// Require checks that the caller holds at least one of keys. An empty
// requirement admits everyone, including a nil caller.
func Require(c *Caller, keys ...Key) error {
	if len(keys) == 0 {
		return nil
	}
	if c.HasAny(keys...) {
		return nil
	}
	return ErrInsufficientPermission
}

// RequireOwnership is the resource-level check that follows a successful
// Require on an :own/:any pair. Holding anyKey skips the ownership comparison.
func RequireOwnership(c *Caller, ownerID string, anyKey Key) error {
	if c == nil {
		return ErrInsufficientPermission
	}
	if anyKey != "" && c.Has(anyKey) {
		return nil
	}
	if ownerID != "" && c.ID == ownerID {
		return nil
	}
	return ErrInsufficientPermission
}

// Requirement is the declared permission set of one operation.
type Requirement struct {
	Keys []Key
	// Any is the :any variant that bypasses ownership, if the operation has one.
	Any Key
}

// Allows runs Require for the declared keys.
func (r Requirement) Allows(c *Caller) error {
	return Require(c, r.Keys...)
}

// AllowsOn runs Allows and then the ownership check against ownerID.
func (r Requirement) AllowsOn(c *Caller, ownerID string) error {
	if err := r.Allows(c); err != nil {
		return err
	}
	if r.Any == "" {
		return nil
	}
	return RequireOwnership(c, ownerID, r.Any)
}
