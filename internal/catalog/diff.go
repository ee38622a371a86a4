package catalog

import (
	"encoding/json"
	"slices"
)

// MembershipDiff is the minimal change turning current membership into the
// desired one.
type MembershipDiff struct {
	ToAdd    []string `json:"to_add"`
	ToRemove []string `json:"to_remove"`
}

// IsEmpty reports whether no change is needed.
func (d MembershipDiff) IsEmpty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0
}

// DiffMembership returns desired minus current as ToAdd and current minus
// desired as ToRemove. Both lists are sorted and free of duplicates.
func DiffMembership(current, desired []string) MembershipDiff {
	cur := toSet(current)
	want := toSet(desired)

	d := MembershipDiff{ToAdd: []string{}, ToRemove: []string{}}
	for id := range want {
		if _, ok := cur[id]; !ok {
			d.ToAdd = append(d.ToAdd, id)
		}
	}
	for id := range cur {
		if _, ok := want[id]; !ok {
			d.ToRemove = append(d.ToRemove, id)
		}
	}
	slices.Sort(d.ToAdd)
	slices.Sort(d.ToRemove)
	return d
}

// NormalizeIDs drops empty and duplicate IDs and sorts the rest. The result
// is never nil.
func NormalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for id := range toSet(ids) {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// filterField is the product attribute a membership filter matches on.
const filterField = "product_item_id"

// FilterClause enumerates the values a filter field may take.
type FilterClause struct {
	IsAny []string `json:"is_any"`
}

// MembershipFilter builds the declarative filter matching exactly desired.
// An empty desired set yields a filter with an empty enumeration, which
// matches nothing.
func MembershipFilter(desired []string) map[string]FilterClause {
	return map[string]FilterClause{filterField: {IsAny: NormalizeIDs(desired)}}
}

// membersFromFilter extracts the enumerated IDs from a set filter. The
// provider returns the filter either as an object or as a JSON string.
func membersFromFilter(raw json.RawMessage) ([]string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}

	var encoded string
	if json.Unmarshal(raw, &encoded) == nil {
		if encoded == "" {
			return nil, false
		}
		raw = json.RawMessage(encoded)
	}

	var f map[string]FilterClause
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, false
	}
	clause, ok := f[filterField]
	if !ok {
		return nil, false
	}
	return NormalizeIDs(clause.IsAny), true
}
