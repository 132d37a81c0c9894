package protocol

import "strings"

// HTTP header names of the payload service.
const (
	// HeaderPayloadTTL sets the relative time-to-live of a stored payload in
	// seconds, or returns the time left.
	HeaderPayloadTTL = "Payload-TTL"

	// HeaderPayloadExpiresAt sets or returns the absolute expiry time of a
	// stored payload.
	HeaderPayloadExpiresAt = "Payload-Expires-At"

	// HeaderPayloadDigest returns the BLAKE3 digest of a stored payload.
	HeaderPayloadDigest = "Payload-Digest"

	// HeaderPayloadWarnings returns the number of relaxed validation failures
	// of a rendered payload.
	HeaderPayloadWarnings = "Payload-Warnings"
)

// Query parameter names of render requests.
const (
	QueryKind       = "kind"
	QuerySelect     = "select"
	QuerySource     = "source"
	QueryLenient    = "lenient"
	QueryMaxDepth   = "max-depth"
	QueryDuplicates = "duplicates"
)

// Valid values for the "kind" query parameter.
const (
	KindResponse = "response"
	KindRequest  = "request"
	KindDelta    = "delta"
)

// Valid values for the "duplicates" query parameter.
const (
	DuplicatesReject = "reject"
	DuplicatesWarn   = "warn"
)

// NegotiateContentType picks the encoder content type for an Accept header.
// CBOR is only chosen when it is listed before JSON.
func NegotiateContentType(accept string) string {
	for _, part := range strings.Split(accept, ",") {
		switch {
		case ContentTypesMatch(part, ContentTypeCBOR):
			return ContentTypeCBOR
		case ContentTypesMatch(part, ContentTypeJSON):
			return ContentTypeJSON
		}
	}
	return ContentTypeJSON
}
