package realtime

import "fmt"

// GroupKind tags the audience namespace of a group.
type GroupKind string

const (
	// KindIdentity addresses every device of one identity.
	KindIdentity GroupKind = "identity"
	// KindRole addresses every connection holding a role.
	KindRole GroupKind = "role"
	// KindResource addresses connections that joined a resource.
	KindResource GroupKind = "resource"
)

// GroupKey identifies one broadcast group.
type GroupKey struct {
	Kind GroupKind
	ID   string
}

// IdentityGroup addresses every connection of identity.
func IdentityGroup(identity string) GroupKey {
	return GroupKey{Kind: KindIdentity, ID: identity}
}

// RoleGroup addresses every connection holding role.
func RoleGroup(role string) GroupKey {
	return GroupKey{Kind: KindRole, ID: role}
}

// ResourceGroup addresses every connection joined to resource.
func ResourceGroup(resource string) GroupKey {
	return GroupKey{Kind: KindResource, ID: resource}
}

// ItemResource is the resource id used for a work item's status stream.
func ItemResource(itemID int64) string {
	return fmt.Sprintf("item:%d", itemID)
}

func (k GroupKey) String() string {
	return string(k.Kind) + ":" + k.ID
}

// Valid reports whether the key names a known kind and a non-empty id.
func (k GroupKey) Valid() bool {
	switch k.Kind {
	case KindIdentity, KindRole, KindResource:
		return k.ID != ""
	default:
		return false
	}
}
