// Package protocol contains wire-level names shared by the payload encoders.
package protocol

import "strings"

// Annotation names written next to payload values.
const (
	// AnnotationContext carries the context path of a top-level payload.
	AnnotationContext = "@context"

	// AnnotationCount carries the total count of a collection.
	AnnotationCount = "@count"

	// AnnotationNextLink points to the next page of a collection.
	AnnotationNextLink = "@nextLink"

	// AnnotationDeltaLink points to the changes since this payload.
	AnnotationDeltaLink = "@deltaLink"

	// AnnotationID carries the canonical identity of a resource.
	AnnotationID = "@id"

	// AnnotationType carries the actual type of a resource when it differs
	// from the type required by metadata.
	AnnotationType = "@type"

	// AnnotationError carries an in-stream error.
	AnnotationError = "@error"

	// SuffixNavigationLink marks a deferred nested member.
	SuffixNavigationLink = "@navigationLink"

	// SuffixBind marks reference links of a request.
	SuffixBind = "@bind"
)

// ValueMember holds the items of a top-level collection.
const ValueMember = "value"

// Content types of the encoders.
const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

// ContentTypesMatch compares two content types case-insensitively for the base media type.
func ContentTypesMatch(a, b string) bool {
	partsA := strings.Split(a, ";")
	partsB := strings.Split(b, ";")
	mediaTypeA := strings.TrimSpace(partsA[0])
	mediaTypeB := strings.TrimSpace(partsB[0])
	return strings.EqualFold(mediaTypeA, mediaTypeB)
}

// NavigationLinkName returns the member name of a deferred nested member.
func NavigationLinkName(member string) string {
	return member + SuffixNavigationLink
}

// BindName returns the member name of the reference links of member.
func BindName(member string) string {
	return member + SuffixBind
}
