package permission

import "sort"

// Set is a deduplicated, order-independent collection of permission keys.
type Set map[Key]struct{}

// NewSet builds a set from raw keys; blanks are skipped.
func NewSet(keys ...Key) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		s[k] = struct{}{}
	}
	return s
}

func (s Set) Has(k Key) bool {
	_, ok := s[k]
	return ok
}

func (s Set) Add(k Key) {
	if k != "" {
		s[k] = struct{}{}
	}
}

func (s Set) Len() int {
	return len(s)
}

// Keys returns the members sorted, suitable for serialisation.
func (s Set) Keys() []Key {
	out := make([]Key, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings is Keys as plain strings.
func (s Set) Strings() []string {
	keys := s.Keys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}

// Caller is the authenticated identity and authorisation context of one
// request. It is built fresh on every authenticated call and passed
// explicitly to whatever needs it.
type Caller struct {
	ID          string
	Username    string
	DisplayName string
	Email       string
	Roles       []string
	Permissions Set
}

// Has reports whether the caller holds k. A nil caller holds nothing.
func (c *Caller) Has(k Key) bool {
	if c == nil {
		return false
	}
	return c.Permissions.Has(k)
}

// HasAny reports whether the caller holds at least one of keys.
func (c *Caller) HasAny(keys ...Key) bool {
	for _, k := range keys {
		if c.Has(k) {
			return true
		}
	}
	return false
}

// HasRole reports whether the caller is a member of the named role.
func (c *Caller) HasRole(name string) bool {
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if r == name {
			return true
		}
	}
	return false
}
