package scoring

import (
	"errors"
	"fmt"
)

// MaxWeight is the upper bound of every weight slider. 0 means "exclude
// entirely", not "weight near zero".
const MaxWeight = 5

// Mutation rejections. Callers branch on these to pick a response code.
var (
	ErrUnknownGroup   = errors.New("unknown weight group")
	ErrUnknownFactor  = errors.New("factor not in group")
	ErrValueRange     = errors.New("weight outside slider range")
	ErrAlwaysOn       = errors.New("group has no toggles")
	ErrSelectionFloor = errors.New("selection floor reached")
)

// GroupKey names one user-facing weight slider.
type GroupKey string

// Group is one weight slider and the factors it governs. A group with a
// single member behaves as a plain per-factor slider; a multi-member group
// splits its slider value evenly across the toggled-on members. AlwaysOn
// groups have no toggles and their members cannot be deselected.
type Group struct {
	Key           GroupKey
	Members       []FactorKey
	AlwaysOn      bool
	MinEnabled    int
	DefaultWeight int
}

// Schema is an ordered set of weight groups. It decides which factors are
// enabled for a given weights/selections pair and how slider values spread
// across them. Group order fixes the iteration order of every computation.
type Schema struct {
	groups []Group
	byKey  map[GroupKey]int
}

// NewSchema validates the group set: known factor keys, no factor claimed
// by two groups, no duplicate group keys, sane defaults.
func NewSchema(groups []Group) (*Schema, error) {
	s := &Schema{
		groups: make([]Group, len(groups)),
		byKey:  make(map[GroupKey]int, len(groups)),
	}
	copy(s.groups, groups)

	claimed := make(map[FactorKey]GroupKey)
	for i, g := range s.groups {
		if g.Key == "" {
			return nil, fmt.Errorf("group %d has empty key", i)
		}
		if _, dup := s.byKey[g.Key]; dup {
			return nil, fmt.Errorf("duplicate group key %q", g.Key)
		}
		if len(g.Members) == 0 {
			return nil, fmt.Errorf("group %q has no members", g.Key)
		}
		if g.DefaultWeight < 0 || g.DefaultWeight > MaxWeight {
			return nil, fmt.Errorf("group %q default weight %d out of range [0,%d]", g.Key, g.DefaultWeight, MaxWeight)
		}
		if g.MinEnabled > len(g.Members) {
			return nil, fmt.Errorf("group %q min enabled %d exceeds member count %d", g.Key, g.MinEnabled, len(g.Members))
		}
		for _, f := range g.Members {
			if _, err := ParseFactorKey(string(f)); err != nil {
				return nil, fmt.Errorf("group %q: %w", g.Key, err)
			}
			if owner, ok := claimed[f]; ok {
				return nil, fmt.Errorf("factor %q claimed by both %q and %q", f, owner, g.Key)
			}
			claimed[f] = g.Key
		}
		s.byKey[g.Key] = i
	}
	return s, nil
}

// CategorySchema returns the category/sub-toggle model: three category
// sliders plus an always-on traffic slider.
func CategorySchema() *Schema {
	s, err := NewSchema([]Group{
		{Key: GroupKey(CategoryAffordability), Members: CategoryAffordability.Members(), MinEnabled: 1, DefaultWeight: 3},
		{Key: GroupKey(CategoryLivability), Members: CategoryLivability.Members(), MinEnabled: 1, DefaultWeight: 3},
		{Key: GroupKey(CategoryEnvironmental), Members: CategoryEnvironmental.Members(), MinEnabled: 1, DefaultWeight: 2},
		{Key: GroupKey(FactorTraffic), Members: []FactorKey{FactorTraffic}, AlwaysOn: true, DefaultWeight: 2},
	})
	if err != nil {
		panic(err)
	}
	return s
}

// FactorSchema returns the per-factor slider model: one group per factor,
// no toggles.
func FactorSchema() *Schema {
	groups := make([]Group, 0, len(AllFactors()))
	for _, f := range AllFactors() {
		groups = append(groups, Group{
			Key:           GroupKey(f),
			Members:       []FactorKey{f},
			AlwaysOn:      true,
			DefaultWeight: 3,
		})
	}
	s, err := NewSchema(groups)
	if err != nil {
		panic(err)
	}
	return s
}

// SchemaByName resolves a configured scheme name to a built-in schema.
func SchemaByName(name string) (*Schema, error) {
	switch name {
	case "", "category":
		return CategorySchema(), nil
	case "factor":
		return FactorSchema(), nil
	default:
		return nil, fmt.Errorf("unknown weighting scheme %q", name)
	}
}

// Groups returns the schema's groups in order.
func (s *Schema) Groups() []Group {
	out := make([]Group, len(s.groups))
	copy(out, s.groups)
	return out
}

// Group looks up a group by slider key.
func (s *Schema) Group(key GroupKey) (Group, bool) {
	i, ok := s.byKey[key]
	if !ok {
		return Group{}, false
	}
	return s.groups[i], true
}

// Weights maps a slider key to its integer value in [0,MaxWeight].
type Weights map[GroupKey]int

// Selections holds the per-group inclusion toggles for multi-member groups.
type Selections map[GroupKey]map[FactorKey]bool

// DefaultWeights returns the schema's baked slider values.
func (s *Schema) DefaultWeights() Weights {
	w := make(Weights, len(s.groups))
	for _, g := range s.groups {
		w[g.Key] = g.DefaultWeight
	}
	return w
}

// DefaultSelections returns every toggleable member switched on.
func (s *Schema) DefaultSelections() Selections {
	sel := make(Selections, len(s.groups))
	for _, g := range s.groups {
		if g.AlwaysOn {
			continue
		}
		m := make(map[FactorKey]bool, len(g.Members))
		for _, f := range g.Members {
			m[f] = true
		}
		sel[g.Key] = m
	}
	return sel
}

// ApplyWeight validates and sets one slider. Out-of-range values and
// unknown keys are rejected here so the calculator can stay total.
func (s *Schema) ApplyWeight(w Weights, key GroupKey, value int) error {
	if _, ok := s.byKey[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownGroup, key)
	}
	if value < 0 || value > MaxWeight {
		return fmt.Errorf("%w: %d not in [0,%d]", ErrValueRange, value, MaxWeight)
	}
	w[key] = value
	return nil
}

// ApplySelection validates and flips one member toggle. Disabling is
// rejected as a no-op when it would drop the group below its MinEnabled
// floor; always-on groups accept no toggle changes at all.
func (s *Schema) ApplySelection(sel Selections, key GroupKey, factor FactorKey, enabled bool) error {
	g, ok := s.Group(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownGroup, key)
	}
	if g.AlwaysOn {
		return fmt.Errorf("%w: %q", ErrAlwaysOn, key)
	}
	member := false
	for _, f := range g.Members {
		if f == factor {
			member = true
			break
		}
	}
	if !member {
		return fmt.Errorf("%w: %q is not a member of %q", ErrUnknownFactor, factor, key)
	}
	toggles := sel[key]
	if toggles == nil {
		toggles = make(map[FactorKey]bool, len(g.Members))
		sel[key] = toggles
	}
	if !enabled && g.MinEnabled > 0 {
		remaining := 0
		for _, f := range g.Members {
			if f != factor && toggles[f] {
				remaining++
			}
		}
		if remaining < g.MinEnabled {
			return fmt.Errorf("%w: group %q requires at least %d enabled", ErrSelectionFloor, key, g.MinEnabled)
		}
	}
	toggles[factor] = enabled
	return nil
}

// EnabledFactors lists the factors that currently contribute weight, in
// schema order. A factor appears when its group's slider is above zero
// and its toggle (if any) is on.
func (s *Schema) EnabledFactors(w Weights, sel Selections) []FactorKey {
	var out []FactorKey
	for _, g := range s.groups {
		if w[g.Key] <= 0 {
			continue
		}
		out = append(out, s.enabledMembers(g, sel)...)
	}
	return out
}

// enabledMembers returns the group's members that participate in scoring
// under the given selections, in member order.
func (s *Schema) enabledMembers(g Group, sel Selections) []FactorKey {
	if g.AlwaysOn {
		return g.Members
	}
	toggles := sel[g.Key]
	if toggles == nil {
		return nil
	}
	var out []FactorKey
	for _, f := range g.Members {
		if toggles[f] {
			out = append(out, f)
		}
	}
	return out
}

// Clone returns an independent copy.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Clone returns an independent deep copy.
func (sel Selections) Clone() Selections {
	out := make(Selections, len(sel))
	for k, toggles := range sel {
		m := make(map[FactorKey]bool, len(toggles))
		for f, on := range toggles {
			m[f] = on
		}
		out[k] = m
	}
	return out
}
