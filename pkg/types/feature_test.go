package types

import (
	"reflect"
	"testing"
)

func TestFeatureBagAddFirstWins(t *testing.T) {
	bag := NewFeatureBag()
	bag.Add(AttrOrg, "Starbucks")
	bag.Add(AttrOrg, "S.Bucks Coffee")

	if got := bag[AttrOrg]; got != "Starbucks" {
		t.Errorf("Add: got %q, want first occurrence %q", got, "Starbucks")
	}
}

func TestFeatureBagAddSkipsEmpty(t *testing.T) {
	bag := NewFeatureBag()
	bag.Add(AttrPerson, "")
	bag.Add("", "orphan")

	if len(bag) != 0 {
		t.Errorf("Add: got %d entries, want 0", len(bag))
	}
}

func TestFeatureBagMergeOverwrites(t *testing.T) {
	bag := FeatureBag{AttrGPE: "NYC"}
	bag.Merge(map[string]string{
		AttrGPE:         "New York",
		AttrMapsPlaceID: "ChIJ-test",
		AttrLatLng:      "",
	})

	if bag[AttrGPE] != "New York" {
		t.Errorf("Merge: GPE = %q, want %q", bag[AttrGPE], "New York")
	}
	if bag[AttrMapsPlaceID] != "ChIJ-test" {
		t.Errorf("Merge: MAPS_PLACE_ID = %q, want %q", bag[AttrMapsPlaceID], "ChIJ-test")
	}
	if bag.Has(AttrLatLng) {
		t.Error("Merge: empty value should not create an entry")
	}
}

func TestFeatureBagCloneIsIndependent(t *testing.T) {
	bag := FeatureBag{AttrOrg: "Microsoft", AttrGPE: "Seattle"}
	clone := bag.Clone()
	clone[AttrOrg] = "changed"

	if bag[AttrOrg] != "Microsoft" {
		t.Error("Clone: mutating the clone changed the original")
	}
}

func TestFeatureBagKeysSorted(t *testing.T) {
	bag := FeatureBag{AttrPhone: "555-0100", AttrEmail: "a@b.c", AttrGPE: "Oslo"}
	want := []string{AttrEmail, AttrGPE, AttrPhone}
	if got := bag.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys: got %v, want %v", got, want)
	}
}

func TestFeatureBagAttributes(t *testing.T) {
	bag := FeatureBag{AttrOrg: "ACME", AttrEmail: "x@acme.io"}
	want := []Attribute{
		{Type: AttrEmail, Value: "x@acme.io"},
		{Type: AttrOrg, Value: "ACME"},
	}
	if got := bag.Attributes(); !reflect.DeepEqual(got, want) {
		t.Errorf("Attributes: got %v, want %v", got, want)
	}
}

func TestNewEntityIDUnique(t *testing.T) {
	if NewEntityID() == NewEntityID() {
		t.Error("NewEntityID: two mints returned the same identifier")
	}
}
