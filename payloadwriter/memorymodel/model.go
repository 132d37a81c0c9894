// Package memorymodel provides an in-memory implementation of
// payloadwriter.Model.
//
// Types and sources are registered once from a Schema and never change
// afterwards. Derived answers (inherited navigation members, assignability,
// synthesized contained sources) are memoized in lock-free maps, so a Model
// can be shared by any number of writers.
package memorymodel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ahimsalabs/payloadwriter-go/payloadwriter"
	"github.com/go4org/hashtriemap"
)

// ErrInvalidSchema indicates a schema that does not describe a consistent
// model.
var ErrInvalidSchema = errors.New("invalid schema")

// Type is a structured type.
type Type struct {
	name       string
	base       *Type
	abstract   bool
	properties []string
	navigation map[string]*Navigation
}

// Name returns the qualified type name.
func (t *Type) Name() string { return t.name }

// Base returns the base type, or nil.
func (t *Type) Base() *Type { return t.base }

// Abstract reports whether the type cannot be instantiated.
func (t *Type) Abstract() bool { return t.abstract }

// Properties returns the structural property names declared on the type.
func (t *Type) Properties() []string { return t.properties }

// Navigation is a navigation member declared on a type.
type Navigation struct {
	name       string
	owner      *Type
	target     *Type
	collection bool
	contained  bool
}

// Name returns the member name.
func (n *Navigation) Name() string { return n.name }

// Owner returns the type that declares the member.
func (n *Navigation) Owner() *Type { return n.owner }

// Target returns the element type of the linked resources.
func (n *Navigation) Target() payloadwriter.StructuredType { return n.target }

// IsCollection reports whether the member is multi-valued.
func (n *Navigation) IsCollection() bool { return n.collection }

// ContainsTarget reports whether the linked resources are contained.
func (n *Navigation) ContainsTarget() bool { return n.contained }

// Source is an entity set, a singleton, or a contained member of another
// source.
type Source struct {
	name      string
	typ       *Type
	singleton bool
	contained bool
	parent    *Source
	bindings  map[string]string
}

// Name returns the source name. Contained sources are named after their
// parent and member, such as "Customers/Addresses".
func (s *Source) Name() string { return s.name }

// Type returns the element type.
func (s *Source) Type() *Type { return s.typ }

// IsSingleton reports whether the source addresses exactly one resource.
func (s *Source) IsSingleton() bool { return s.singleton }

// Contained reports whether the source is synthesized from a containment
// navigation member.
func (s *Source) Contained() bool { return s.contained }

// Parent returns the source a contained source belongs to, or nil.
func (s *Source) Parent() *Source { return s.parent }

type memberKey struct {
	owner string
	name  string
}

type assignKey struct {
	base    string
	derived string
}

// Model is an immutable in-memory model.
// Uses hashtriemap for lock-free lookups and memoized derived answers.
type Model struct {
	namespace string
	types     hashtriemap.HashTrieMap[string, *Type]
	sources   hashtriemap.HashTrieMap[string, *Source]

	members    hashtriemap.HashTrieMap[memberKey, *Navigation]
	assignable hashtriemap.HashTrieMap[assignKey, bool]
	contained  hashtriemap.HashTrieMap[memberKey, *Source]
}

var _ payloadwriter.Model = (*Model)(nil)

// FromSchema builds a model. Every referenced type and source must be
// declared, and base chains must not form cycles.
func FromSchema(s *Schema) (*Model, error) {
	m := &Model{namespace: s.Namespace}

	for _, ts := range s.Types {
		if ts.Name == "" {
			return nil, fmt.Errorf("type without a name: %w", ErrInvalidSchema)
		}
		t := &Type{
			name:       m.qualify(ts.Name),
			abstract:   ts.Abstract,
			properties: ts.Properties,
			navigation: make(map[string]*Navigation, len(ts.Navigation)),
		}
		if _, loaded := m.types.LoadOrStore(t.name, t); loaded {
			return nil, fmt.Errorf("type %q declared twice: %w", t.name, ErrInvalidSchema)
		}
	}

	for _, ts := range s.Types {
		t, _ := m.types.Load(m.qualify(ts.Name))
		if ts.Base != "" {
			base, ok := m.types.Load(m.qualify(ts.Base))
			if !ok {
				return nil, fmt.Errorf("type %q: unknown base type %q: %w", t.name, ts.Base, ErrInvalidSchema)
			}
			t.base = base
		}
		for _, ns := range ts.Navigation {
			target, ok := m.types.Load(m.qualify(ns.Target))
			if !ok {
				return nil, fmt.Errorf("member %s/%s: unknown target type %q: %w", t.name, ns.Name, ns.Target, ErrInvalidSchema)
			}
			if _, dup := t.navigation[ns.Name]; dup {
				return nil, fmt.Errorf("member %s/%s declared twice: %w", t.name, ns.Name, ErrInvalidSchema)
			}
			t.navigation[ns.Name] = &Navigation{
				name:       ns.Name,
				owner:      t,
				target:     target,
				collection: ns.Collection,
				contained:  ns.Contained,
			}
		}
	}

	var cycleErr error
	m.types.Range(func(_ string, t *Type) bool {
		seen := map[*Type]bool{}
		for cur := t; cur != nil; cur = cur.base {
			if seen[cur] {
				cycleErr = fmt.Errorf("type %q has a cyclic base chain: %w", t.name, ErrInvalidSchema)
				return false
			}
			seen[cur] = true
		}
		return true
	})
	if cycleErr != nil {
		return nil, cycleErr
	}

	for _, ss := range s.Sources {
		t, ok := m.types.Load(m.qualify(ss.Type))
		if !ok {
			return nil, fmt.Errorf("source %q: unknown type %q: %w", ss.Name, ss.Type, ErrInvalidSchema)
		}
		src := &Source{
			name:      ss.Name,
			typ:       t,
			singleton: ss.Singleton,
			bindings:  ss.Bindings,
		}
		if _, loaded := m.sources.LoadOrStore(src.name, src); loaded {
			return nil, fmt.Errorf("source %q declared twice: %w", src.name, ErrInvalidSchema)
		}
	}
	for _, ss := range s.Sources {
		for member, target := range ss.Bindings {
			if _, ok := m.sources.Load(target); !ok {
				return nil, fmt.Errorf("source %q: binding %q targets unknown source %q: %w", ss.Name, member, target, ErrInvalidSchema)
			}
		}
	}

	return m, nil
}

// qualify prefixes unqualified names with the model namespace.
func (m *Model) qualify(name string) string {
	if m.namespace == "" || strings.Contains(name, ".") {
		return name
	}
	return m.namespace + "." + name
}

// Type returns the type with the given name, qualified or not.
func (m *Model) Type(name string) (*Type, bool) {
	if t, ok := m.types.Load(name); ok {
		return t, true
	}
	return m.types.Load(m.qualify(name))
}

// Source returns the top-level source with the given name.
func (m *Model) Source(name string) (*Source, bool) {
	return m.sources.Load(name)
}

// ResolveType returns the type with the given name.
func (m *Model) ResolveType(name string) (payloadwriter.StructuredType, bool) {
	t, ok := m.Type(name)
	if !ok {
		return nil, false
	}
	return t, true
}

// ElementType returns the element type of source.
func (m *Model) ElementType(source payloadwriter.NavigationSource) payloadwriter.StructuredType {
	src := m.source(source)
	if src == nil || src.typ == nil {
		return nil
	}
	return src.typ
}

// NavigationMember returns the member name of owner or of one of its base
// types. Lookups are memoized, misses included.
func (m *Model) NavigationMember(owner payloadwriter.StructuredType, name string) (payloadwriter.NavigationMember, bool) {
	if owner == nil {
		return nil, false
	}
	key := memberKey{owner: owner.Name(), name: name}
	nav, ok := m.members.Load(key)
	if !ok {
		nav = m.findMember(owner.Name(), name)
		nav, _ = m.members.LoadOrStore(key, nav)
	}
	if nav == nil {
		return nil, false
	}
	return nav, true
}

func (m *Model) findMember(owner, name string) *Navigation {
	t, ok := m.Type(owner)
	if !ok {
		return nil
	}
	for cur := t; cur != nil; cur = cur.base {
		if nav, ok := cur.navigation[name]; ok {
			return nav
		}
	}
	return nil
}

// NavigationTarget returns the source the targets of member live in when
// reached from source. Containment members yield a synthesized contained
// source; other members follow the bindings of source.
func (m *Model) NavigationTarget(source payloadwriter.NavigationSource, member payloadwriter.NavigationMember) (payloadwriter.NavigationSource, bool) {
	src := m.source(source)
	if src == nil || member == nil {
		return nil, false
	}
	if member.ContainsTarget() {
		return m.containedSource(src, member), true
	}
	name, ok := src.bindings[member.Name()]
	if !ok {
		return nil, false
	}
	target, ok := m.sources.Load(name)
	if !ok {
		return nil, false
	}
	return target, true
}

func (m *Model) containedSource(parent *Source, member payloadwriter.NavigationMember) *Source {
	key := memberKey{owner: parent.name, name: member.Name()}
	if src, ok := m.contained.Load(key); ok {
		return src
	}
	var typ *Type
	if t := member.Target(); t != nil {
		typ, _ = m.Type(t.Name())
	}
	src := &Source{
		name:      parent.name + "/" + member.Name(),
		typ:       typ,
		singleton: !member.IsCollection(),
		contained: true,
		parent:    parent,
	}
	src, _ = m.contained.LoadOrStore(key, src)
	return src
}

// IsContained reports whether source was synthesized from a containment
// member.
func (m *Model) IsContained(source payloadwriter.NavigationSource) bool {
	src := m.source(source)
	return src != nil && src.contained
}

// IsAssignable reports whether derived is base or derives from it.
func (m *Model) IsAssignable(base, derived payloadwriter.StructuredType) bool {
	if base == nil || derived == nil {
		return false
	}
	key := assignKey{base: base.Name(), derived: derived.Name()}
	if ok, cached := m.assignable.Load(key); cached {
		return ok
	}
	result := false
	if t, ok := m.Type(derived.Name()); ok {
		for cur := t; cur != nil; cur = cur.base {
			if cur.name == key.base {
				result = true
				break
			}
		}
	}
	result, _ = m.assignable.LoadOrStore(key, result)
	return result
}

// source maps a navigation source onto one of this model's sources.
func (m *Model) source(source payloadwriter.NavigationSource) *Source {
	switch s := source.(type) {
	case nil:
		return nil
	case *Source:
		return s
	default:
		src, _ := m.sources.Load(source.Name())
		return src
	}
}
