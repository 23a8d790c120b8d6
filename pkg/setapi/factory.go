package setapi

import "fmt"

// Variant names a synchronization scheme.
type Variant int

const (
	// Coarse guards the whole tree with a single reader/writer mutex. It
	// is the reference oracle the other two variants are checked against.
	Coarse Variant = iota
	// Optimistic is the Bronson et al. per-node lock + version scheme.
	Optimistic
	// KCAS is the multi-word-CAS scheme with an HTM fast-path hook.
	KCAS
)

func (v Variant) String() string {
	switch v {
	case Coarse:
		return "coarse"
	case Optimistic:
		return "optimistic"
	case KCAS:
		return "kcas"
	default:
		return fmt.Sprintf("setapi.Variant(%d)", int(v))
	}
}

// ParseVariant maps a CLI/config string onto a Variant.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "coarse":
		return Coarse, nil
	case "optimistic":
		return Optimistic, nil
	case "kcas":
		return KCAS, nil
	default:
		return 0, fmt.Errorf("setapi: unknown variant %q", s)
	}
}

type constructor func() Set

var registry = map[Variant]constructor{}

// Register attaches a constructor to a variant. Called from the init()
// function of each scheme package (pkg/coarse, pkg/optimistic,
// pkg/lockfree) so that importing this package alone does not pull in
// every scheme — only the ones the caller's program actually imports.
func Register(v Variant, ctor func() Set) {
	registry[v] = ctor
}

// New constructs an empty Set implementing the requested variant. It
// panics if the corresponding scheme package was never imported (and so
// never registered itself) — a programmer error, not a runtime condition
// callers need to handle.
func New(v Variant) Set {
	ctor, ok := registry[v]
	if !ok {
		panic(fmt.Sprintf("setapi: variant %s not registered (missing blank import?)", v))
	}
	return ctor()
}
