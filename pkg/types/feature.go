package types

import "sort"

// FeatureBag maps attribute types to a single attribute value. A bag is
// ephemeral: it is built per input item, sharpened by enrichment, consumed
// by the resolution engine, and then discarded. Only its entries are
// durably persisted (as index rows).
//
// The current design keeps at most one value per type: Add is first-wins
// for extraction output, while Merge overwrites so that enrichment can
// upgrade a value.
type FeatureBag map[string]string

// NewFeatureBag returns an empty feature bag.
func NewFeatureBag() FeatureBag {
	return make(FeatureBag)
}

// Add records a value for the given attribute type unless the type is
// already present (first occurrence wins) or the value is empty.
func (b FeatureBag) Add(attrType, value string) {
	if attrType == "" || value == "" {
		return
	}
	if _, ok := b[attrType]; ok {
		return
	}
	b[attrType] = value
}

// Merge copies every non-empty entry of derived into the bag, overwriting
// existing values. This is the sharpening step applied to enrichment output.
func (b FeatureBag) Merge(derived map[string]string) {
	for attrType, value := range derived {
		if attrType == "" || value == "" {
			continue
		}
		b[attrType] = value
	}
}

// Has reports whether the bag contains a value for the given attribute type.
func (b FeatureBag) Has(attrType string) bool {
	_, ok := b[attrType]
	return ok
}

// Clone returns an independent copy of the bag.
func (b FeatureBag) Clone() FeatureBag {
	out := make(FeatureBag, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Keys returns the attribute types present in the bag, sorted for
// deterministic iteration.
func (b FeatureBag) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Attributes returns the bag's entries as a slice of Attribute values,
// ordered by attribute type.
func (b FeatureBag) Attributes() []Attribute {
	attrs := make([]Attribute, 0, len(b))
	for _, k := range b.Keys() {
		attrs = append(attrs, Attribute{Type: k, Value: b[k]})
	}
	return attrs
}
