package triage

// FilterUnprocessed returns the names from listing that are not in processed,
// preserving listing order.
func FilterUnprocessed(listing []string, processed NameSet) []string {
	out := make([]string, 0, len(listing))
	for _, name := range listing {
		if processed.Has(name) {
			continue
		}
		out = append(out, name)
	}
	return out
}
