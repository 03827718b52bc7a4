package collect

import (
	"sort"
	"sync"

	"github.com/fmeum/unbox/internal/box"
)

// valueSet is an ordered, duplicate-free set of literals. Each literal
// remembers the files that contributed it.
type valueSet struct {
	keys   []string
	lits   map[string]*box.Literal
	owners map[string]map[string]bool
}

func newValueSet() *valueSet {
	return &valueSet{lits: make(map[string]*box.Literal), owners: make(map[string]map[string]bool)}
}

func (s *valueSet) add(file string, l *box.Literal) bool {
	k := l.Key()
	added := false
	if _, ok := s.lits[k]; !ok {
		s.keys = append(s.keys, k)
		s.lits[k] = l
		s.owners[k] = make(map[string]bool)
		added = true
	}
	s.owners[k][file] = true
	return added
}

func (s *valueSet) forget(file string) {
	keys := s.keys[:0]
	for _, k := range s.keys {
		delete(s.owners[k], file)
		if len(s.owners[k]) == 0 {
			delete(s.owners, k)
			delete(s.lits, k)
			continue
		}
		keys = append(keys, k)
	}
	s.keys = keys
}

func (s *valueSet) values() []*box.Literal {
	out := make([]*box.Literal, len(s.keys))
	for i, k := range s.keys {
		out[i] = s.lits[k]
	}
	return out
}

type propUsage struct {
	values    *valueSet
	condOrder []string
	conds     map[string]*valueSet
}

func newPropUsage() *propUsage {
	return &propUsage{values: newValueSet(), conds: make(map[string]*valueSet)}
}

type constructUsage struct {
	kind      Kind
	propOrder []string
	props     map[string]*propUsage
}

// UsageMap accumulates, per tracked construct, the literal values observed
// for each property, and for values nested under a grouping object, per
// condition. It is safe for concurrent use.
type UsageMap struct {
	mu         sync.Mutex
	order      []string
	constructs map[string]*constructUsage
}

func NewUsageMap() *UsageMap {
	return &UsageMap{constructs: make(map[string]*constructUsage)}
}

func (m *UsageMap) construct(name string, kind Kind) *constructUsage {
	c, ok := m.constructs[name]
	if !ok {
		c = &constructUsage{kind: kind, props: make(map[string]*propUsage)}
		m.constructs[name] = c
		m.order = append(m.order, name)
	}
	return c
}

// Track registers a construct so that it is reported even without usages.
func (m *UsageMap) Track(name string, kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.construct(name, kind)
}

// Add records that file uses l for prop of the named construct, under cond
// if it is not empty. It reports whether the value is new.
func (m *UsageMap) Add(file, name string, kind Kind, prop, cond string, l *box.Literal) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.add(file, name, kind, prop, cond, l)
}

func (m *UsageMap) add(file, name string, kind Kind, prop, cond string, l *box.Literal) bool {
	c := m.construct(name, kind)
	p, ok := c.props[prop]
	if !ok {
		p = newPropUsage()
		c.props[prop] = p
		c.propOrder = append(c.propOrder, prop)
	}
	if cond == "" {
		return p.values.add(file, l)
	}
	s, ok := p.conds[cond]
	if !ok {
		s = newValueSet()
		p.conds[cond] = s
		p.condOrder = append(p.condOrder, cond)
	}
	return s.add(file, l)
}

// Merge adds every value of other to m, keeping the contributing files.
func (m *UsageMap) Merge(other *UsageMap) {
	snap := other.records()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range snap {
		m.construct(c.name, c.kind)
		for _, r := range c.records {
			for _, f := range r.files {
				m.add(f, c.name, c.kind, r.prop, r.cond, r.lit)
			}
		}
	}
}

// Forget retracts the contributions of file. Values no other file
// contributed are dropped, as are properties and conditions left empty.
// Constructs stay tracked.
func (m *UsageMap) Forget(file string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.constructs {
		props := c.propOrder[:0]
		for _, name := range c.propOrder {
			p := c.props[name]
			p.values.forget(file)
			conds := p.condOrder[:0]
			for _, cn := range p.condOrder {
				p.conds[cn].forget(file)
				if len(p.conds[cn].keys) == 0 {
					delete(p.conds, cn)
					continue
				}
				conds = append(conds, cn)
			}
			p.condOrder = conds
			if len(p.values.keys) == 0 && len(p.conds) == 0 {
				delete(c.props, name)
				continue
			}
			props = append(props, name)
		}
		c.propOrder = props
	}
}

// Constructs returns the tracked construct names in registration order.
func (m *UsageMap) Constructs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Properties returns the properties recorded for a construct.
func (m *UsageMap) Properties(name string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.constructs[name]; ok {
		return append([]string(nil), c.propOrder...)
	}
	return nil
}

// Values returns the literals recorded for prop outside of conditions.
func (m *UsageMap) Values(name, prop string) []*box.Literal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.prop(name, prop); p != nil {
		return p.values.values()
	}
	return nil
}

// Conditions returns the condition names recorded for prop.
func (m *UsageMap) Conditions(name, prop string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.prop(name, prop); p != nil {
		return append([]string(nil), p.condOrder...)
	}
	return nil
}

// ConditionValues returns the literals recorded for prop under cond.
func (m *UsageMap) ConditionValues(name, prop, cond string) []*box.Literal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.prop(name, prop); p != nil {
		if s, ok := p.conds[cond]; ok {
			return s.values()
		}
	}
	return nil
}

func (m *UsageMap) prop(name, prop string) *propUsage {
	if c, ok := m.constructs[name]; ok {
		return c.props[prop]
	}
	return nil
}

// ConstructUsage is a point-in-time copy of the usage of one construct.
type ConstructUsage struct {
	Name  string
	Kind  Kind
	Props []PropUsage
}

type PropUsage struct {
	Name       string
	Values     []*box.Literal
	Conditions []ConditionUsage
}

type ConditionUsage struct {
	Name   string
	Values []*box.Literal
}

// Snapshot copies the map. With sorted, constructs, properties and
// conditions are ordered by name; values keep their recording order.
func (m *UsageMap) Snapshot(sorted bool) []ConstructUsage {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := append([]string(nil), m.order...)
	if sorted {
		sort.Strings(names)
	}
	out := make([]ConstructUsage, 0, len(names))
	for _, name := range names {
		c := m.constructs[name]
		cu := ConstructUsage{Name: name, Kind: c.kind}
		props := append([]string(nil), c.propOrder...)
		if sorted {
			sort.Strings(props)
		}
		for _, pn := range props {
			p := c.props[pn]
			pu := PropUsage{Name: pn, Values: p.values.values()}
			conds := append([]string(nil), p.condOrder...)
			if sorted {
				sort.Strings(conds)
			}
			for _, cn := range conds {
				pu.Conditions = append(pu.Conditions, ConditionUsage{Name: cn, Values: p.conds[cn].values()})
			}
			cu.Props = append(cu.Props, pu)
		}
		out = append(out, cu)
	}
	return out
}

type record struct {
	prop, cond string
	lit        *box.Literal
	files      []string
}

type constructRecords struct {
	name    string
	kind    Kind
	records []record
}

// records lists every recorded value with its files, in recording order.
func (m *UsageMap) records() []constructRecords {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]constructRecords, 0, len(m.order))
	for _, name := range m.order {
		c := m.constructs[name]
		cr := constructRecords{name: name, kind: c.kind}
		for _, pn := range c.propOrder {
			p := c.props[pn]
			cr.records = appendRecords(cr.records, pn, "", p.values)
			for _, cn := range p.condOrder {
				cr.records = appendRecords(cr.records, pn, cn, p.conds[cn])
			}
		}
		out = append(out, cr)
	}
	return out
}

func appendRecords(dst []record, prop, cond string, s *valueSet) []record {
	for _, k := range s.keys {
		r := record{prop: prop, cond: cond, lit: s.lits[k]}
		for f := range s.owners[k] {
			r.files = append(r.files, f)
		}
		sort.Strings(r.files)
		dst = append(dst, r)
	}
	return dst
}
