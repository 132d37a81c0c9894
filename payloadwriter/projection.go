package payloadwriter

// projectMember derives the selection beneath member from the selection of
// its owning resource. excluded is true when member is left out, in which
// case the whole subtree is written with skip set.
func projectMember(parent Selection, member string) (sub Selection, excluded bool) {
	if parent == nil {
		return nil, false
	}
	if parent.Excludes(member) {
		return nil, true
	}
	return parent.Sub(member), false
}
