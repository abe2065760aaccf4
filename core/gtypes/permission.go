package gtypes

// Permission gates who may call Upload/Instantiate (§3 Config.permissions).
// The owner is always permitted regardless of the configured permission.
type Permission struct {
	Kind       PermissionKind
	Somebodies map[Address]struct{} // valid when Kind == PermissionSomebodies
}

type PermissionKind int

const (
	PermissionNobody PermissionKind = iota
	PermissionEverybody
	PermissionSomebodies
)

func PermissionOfNobody() Permission    { return Permission{Kind: PermissionNobody} }
func PermissionOfEverybody() Permission { return Permission{Kind: PermissionEverybody} }

func PermissionOfSomebodies(addrs ...Address) Permission {
	set := make(map[Address]struct{}, len(addrs))
	for _, a := range addrs {
		set[a] = struct{}{}
	}
	return Permission{Kind: PermissionSomebodies, Somebodies: set}
}

// Allows reports whether sender may act under this permission. owner is
// always permitted (§3).
func (p Permission) Allows(sender, owner Address) bool {
	if sender == owner {
		return true
	}
	switch p.Kind {
	case PermissionEverybody:
		return true
	case PermissionSomebodies:
		_, ok := p.Somebodies[sender]
		return ok
	default:
		return false
	}
}
