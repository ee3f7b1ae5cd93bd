package gen

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pankcuf/ferment-sub000/model"
)

// ErrGenericFixpoint is returned when generic expansion does not settle
// within the configured iteration cap.
var ErrGenericFixpoint = errors.New("generic instantiation did not reach a fixed point")

// GenericKey is the structural fingerprint of a generic instantiation:
// its mangled name. Equal keys share one mirror type.
type GenericKey string

// GenericInstance is one monomorphized container mirror and every native
// type that shares its layout.
type GenericInstance struct {
	Key     GenericKey
	Kind    ConversionKind
	Natives []*model.TypeRef

	natives map[string]bool
	gates   map[string]bool
	ungated bool
	parents map[GenericKey]bool
}

// GenericWork is one unit drained from the collector: a native type to
// emit a conversion for. First is set for the instance's first native,
// which also emits the mirror type itself.
type GenericWork struct {
	Instance *GenericInstance
	Native   *model.TypeRef
	First    bool
}

// GenericCollector discovers generic instantiations, deduplicates them by
// key and hands them out for emission until none are pending.
type GenericCollector struct {
	entries map[GenericKey]*GenericInstance
	pending []GenericWork
	drained int
	limit   int
}

// NewGenericCollector creates a collector that fails after limit drains.
func NewGenericCollector(limit int) *GenericCollector {
	return &GenericCollector{entries: make(map[GenericKey]*GenericInstance), limit: limit}
}

// Register records a use of an instantiation by an item gated by gate
// ("" for ungated). Registering the same native twice only merges gates.
func (g *GenericCollector) Register(u genericUse, gate string) {
	inst := g.entry(u)
	if gate == "" {
		inst.ungated = true
	} else {
		inst.gates[gate] = true
	}
}

// RegisterNested records a use from inside another instantiation; the
// nested instance inherits the parent's gates.
func (g *GenericCollector) RegisterNested(u genericUse, parent GenericKey) {
	if u.Key == parent {
		g.entry(u)
		return
	}
	inst := g.entry(u)
	inst.parents[parent] = true
}

func (g *GenericCollector) entry(u genericUse) *GenericInstance {
	inst, ok := g.entries[u.Key]
	if !ok {
		inst = &GenericInstance{
			Key:     u.Key,
			Kind:    u.Kind,
			natives: make(map[string]bool),
			gates:   make(map[string]bool),
			parents: make(map[GenericKey]bool),
		}
		g.entries[u.Key] = inst
	}
	native := u.Native.String()
	if !inst.natives[native] {
		inst.natives[native] = true
		inst.Natives = append(inst.Natives, u.Native)
		g.pending = append(g.pending, GenericWork{Instance: inst, Native: u.Native, First: len(inst.Natives) == 1})
	}
	return inst
}

// Pending reports whether work remains.
func (g *GenericCollector) Pending() bool {
	return len(g.pending) > 0
}

// Drain returns the next pending unit of work. ok is false once the
// collector is quiescent.
func (g *GenericCollector) Drain() (w GenericWork, ok bool, err error) {
	if len(g.pending) == 0 {
		return GenericWork{}, false, nil
	}
	g.drained++
	if g.drained > g.limit {
		return GenericWork{}, false, fmt.Errorf("%w after %d iterations (%d pending, next %s)",
			ErrGenericFixpoint, g.limit, len(g.pending), g.pending[0].Instance.Key)
	}
	w = g.pending[0]
	g.pending = g.pending[1:]
	return w, true, nil
}

// Instances returns every instance, sorted by key.
func (g *GenericCollector) Instances() []*GenericInstance {
	out := make([]*GenericInstance, 0, len(g.entries))
	for _, inst := range g.entries {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Lookup returns the instance with key k.
func (g *GenericCollector) Lookup(k GenericKey) *GenericInstance {
	return g.entries[k]
}

// Gate returns the cfg predicate under which the instance is needed:
// the any() of its users' gates, or "" when some user is ungated.
func (g *GenericCollector) Gate(k GenericKey) string {
	gates, ungated := g.gateSet(k, map[GenericKey]bool{})
	if ungated || len(gates) == 0 {
		return ""
	}
	return anyOf(gates)
}

func (g *GenericCollector) gateSet(k GenericKey, visiting map[GenericKey]bool) (map[string]bool, bool) {
	inst := g.entries[k]
	if inst == nil || visiting[k] {
		return nil, false
	}
	visiting[k] = true
	defer delete(visiting, k)
	if inst.ungated {
		return nil, true
	}
	out := make(map[string]bool, len(inst.gates))
	for gate := range inst.gates {
		out[gate] = true
	}
	for p := range inst.parents {
		pg, ungated := g.gateSet(p, visiting)
		if ungated {
			return nil, true
		}
		for gate := range pg {
			out[gate] = true
		}
	}
	return out, false
}

func anyOf(gates map[string]bool) string {
	list := make([]string, 0, len(gates))
	for gate := range gates {
		list = append(list, gate)
	}
	sort.Strings(list)
	if len(list) == 1 {
		return list[0]
	}
	return "any(" + strings.Join(list, ", ") + ")"
}

// allOf joins an item's cfg predicates into one.
func allOf(cfgs []string) string {
	switch len(cfgs) {
	case 0:
		return ""
	case 1:
		return cfgs[0]
	}
	return "all(" + strings.Join(cfgs, ", ") + ")"
}
