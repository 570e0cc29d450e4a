package journal

import "fmt"

// Policy decides how the mirror is reconciled after an entry is created.
// Comments are always patched from the server response.
type Policy int

const (
	// ReconcileRefetch reloads the whole journal after a successful create
	ReconcileRefetch Policy = iota
	// ReconcilePatch appends the server-returned entry to the mirror
	ReconcilePatch
)

func (p Policy) String() string {
	switch p {
	case ReconcileRefetch:
		return "refetch"
	case ReconcilePatch:
		return "patch"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses "refetch" or "patch"
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "refetch", "":
		return ReconcileRefetch, nil
	case "patch":
		return ReconcilePatch, nil
	default:
		return 0, fmt.Errorf("unknown reconcile policy %q (want refetch or patch)", s)
	}
}
