package payloadwriter

import "strings"

// SegmentKind classifies a path segment.
type SegmentKind int

const (
	// SegmentSource addresses a top-level container.
	SegmentSource SegmentKind = iota
	// SegmentKey selects one resource of a collection-valued segment.
	SegmentKey
	// SegmentNavigation follows a navigation member.
	SegmentNavigation
)

// keyPlaceholder is used for key segments of resources without a Key.
const keyPlaceholder = "{key}"

// Segment is one step of a canonical addressing path.
type Segment struct {
	Kind SegmentKind
	Name string
	// Collection reports whether the segment addresses many resources.
	Collection bool
}

// Path is an immutable canonical addressing path.
type Path struct {
	segments []Segment
}

// SourcePath returns a path starting at the named container.
func SourcePath(name string, collection bool) Path {
	return Path{segments: []Segment{{Kind: SegmentSource, Name: name, Collection: collection}}}
}

// IsEmpty reports whether the path has no segments.
func (p Path) IsEmpty() bool {
	return len(p.segments) == 0
}

// Segments returns a copy of the segments.
func (p Path) Segments() []Segment {
	out := make([]Segment, len(p.segments))
	copy(out, p.segments)
	return out
}

// NeedsKey reports whether a key segment must be appended before the path can
// be extended by a navigation member.
func (p Path) NeedsKey() bool {
	if len(p.segments) == 0 {
		return false
	}
	last := p.segments[len(p.segments)-1]
	return last.Kind != SegmentKey && last.Collection
}

// WithKey returns the path extended by a key segment. An empty key becomes
// a placeholder.
func (p Path) WithKey(key string) Path {
	if key == "" {
		key = keyPlaceholder
	}
	return p.with(Segment{Kind: SegmentKey, Name: key})
}

// WithNavigation returns the path extended by a navigation segment.
func (p Path) WithNavigation(name string, collection bool) Path {
	return p.with(Segment{Kind: SegmentNavigation, Name: name, Collection: collection})
}

func (p Path) with(s Segment) Path {
	segments := make([]Segment, len(p.segments), len(p.segments)+1)
	copy(segments, p.segments)
	return Path{segments: append(segments, s)}
}

// String formats the path as "Customers(1)/Orders".
func (p Path) String() string {
	var b strings.Builder
	for i, s := range p.segments {
		switch s.Kind {
		case SegmentKey:
			b.WriteByte('(')
			b.WriteString(s.Name)
			b.WriteByte(')')
		default:
			if i > 0 {
				b.WriteByte('/')
			}
			b.WriteString(s.Name)
		}
	}
	return b.String()
}
