// Package types defines the shared data model for the tether entity
// resolution system: attributes, feature bags, and entity identifiers.
package types

import "github.com/google/uuid"

// Well-known attribute type tags. The vocabulary is open: any string is a
// valid attribute type, and unknown types score with the engine's default
// weight. These constants only name the types the reference extractor and
// enrichers produce.
const (
	AttrPerson = "PERSON"
	AttrOrg    = "ORG"
	AttrGPE    = "GPE"
	AttrEmail  = "EMAIL"
	AttrPhone  = "PHONE"

	// Derived identifiers produced by enrichment.
	AttrMapsPlaceID      = "MAPS_PLACE_ID"
	AttrFormattedAddress = "FORMATTED_ADDRESS"
	AttrLatLng           = "LAT_LNG"
)

// Attribute is a single typed observation about an entity, e.g.
// {Type: "EMAIL", Value: "ada@example.com"}. No attribute type is privileged
// structurally; the engine's weight table is the only place importance is
// encoded.
type Attribute struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// EntityID is an opaque, globally unique token identifying a resolved
// real-world entity. It is minted exactly once per new entity, is immutable
// thereafter, and is never reused.
type EntityID string

// NewEntityID mints a fresh entity identifier (a random 128-bit UUID).
func NewEntityID() EntityID {
	return EntityID(uuid.NewString())
}

// String returns the identifier as a plain string.
func (id EntityID) String() string {
	return string(id)
}
