// Package selection provides a pre-parsed member selection tree for
// payloadwriter.
//
// A Tree is built from slash-separated member paths:
//
//	sel, err := selection.Parse("Name", "Orders/Id", "Orders/Items")
//
// selects the member Name of the top-level resource and, beneath the member
// Orders, only Id and Items. The wildcard "*" selects every member of its
// level. A member named without sub-paths selects its whole subtree.
package selection

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ahimsalabs/payloadwriter-go/payloadwriter"
)

// Wildcard selects every member of one level.
const Wildcard = "*"

// ErrInvalidPath indicates a member path that cannot be parsed.
var ErrInvalidPath = errors.New("invalid selection path")

// Tree is one level of a selection. The zero value selects nothing; use All
// for a tree that selects everything.
type Tree struct {
	all     bool
	members map[string]*Tree
}

var _ payloadwriter.Selection = (*Tree)(nil)

// All returns a tree that selects every member at every level.
func All() *Tree {
	return &Tree{all: true}
}

// Parse builds a tree from member paths. Parsing no paths yields All.
func Parse(paths ...string) (*Tree, error) {
	if len(paths) == 0 {
		return All(), nil
	}
	root := &Tree{}
	for _, p := range paths {
		if err := root.add(p); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// MustParse is like Parse but panics on invalid paths.
func MustParse(paths ...string) *Tree {
	t, err := Parse(paths...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Tree) add(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("empty path: %w", ErrInvalidPath)
	}
	segments := strings.Split(path, "/")
	cur := t
	for i, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			return fmt.Errorf("empty segment in %q: %w", path, ErrInvalidPath)
		}
		if seg == Wildcard {
			if i != len(segments)-1 {
				return fmt.Errorf("wildcard must be the last segment in %q: %w", path, ErrInvalidPath)
			}
			cur.all = true
			return nil
		}
		if cur.members == nil {
			cur.members = make(map[string]*Tree)
		}
		next, ok := cur.members[seg]
		if !ok {
			next = &Tree{}
			cur.members[seg] = next
		}
		if i == len(segments)-1 {
			next.all = true
		}
		cur = next
	}
	return nil
}

// Excludes reports whether member is left out at this level.
func (t *Tree) Excludes(member string) bool {
	if t == nil || t.all {
		return false
	}
	_, ok := t.members[member]
	return !ok
}

// Sub returns the selection beneath member. A member selected as a whole
// yields a tree selecting everything.
func (t *Tree) Sub(member string) payloadwriter.Selection {
	if t == nil {
		return nil
	}
	if sub, ok := t.members[member]; ok {
		return sub
	}
	if t.all {
		return All()
	}
	return &Tree{}
}

// Members returns the explicitly named members of this level, sorted.
func (t *Tree) Members() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.members))
	for name := range t.members {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// String renders the tree as a comma-separated list of member paths.
func (t *Tree) String() string {
	var paths []string
	t.collect("", &paths)
	return strings.Join(paths, ",")
}

func (t *Tree) collect(prefix string, out *[]string) {
	if t == nil {
		return
	}
	if t.all && len(t.members) == 0 {
		if prefix == "" {
			*out = append(*out, Wildcard)
		} else {
			*out = append(*out, prefix)
		}
		return
	}
	if t.all {
		*out = append(*out, join(prefix, Wildcard))
	}
	names := make([]string, 0, len(t.members))
	for name := range t.members {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		t.members[name].collect(join(prefix, name), out)
	}
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
