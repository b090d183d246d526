package qstore

import (
	"errors"
	"math"
	"testing"
)

func TestGeometryValidate(t *testing.T) {
	if err := DefaultGeometry().Validate(); err != nil {
		t.Errorf("Expected the default geometry to be valid, got %v", err)
	}

	invalid := []Geometry{
		{Quantum: 0, QSet: 1},
		{Quantum: 1, QSet: -1},
		{Quantum: math.MaxInt, QSet: math.MaxInt},
	}
	for _, g := range invalid {
		if err := g.Validate(); !errors.Is(err, ErrInvalidGeometry) {
			t.Errorf("Expected ErrInvalidGeometry for %s, got %v", g, err)
		}
	}
}

func TestGeometryTranslate(t *testing.T) {
	g := Geometry{Quantum: 4, QSet: 2}
	if g.ItemSize() != 8 {
		t.Errorf("Expected item size 8, got %d", g.ItemSize())
	}

	cases := map[int64]Position{
		0:  {Item: 0, Slot: 0, Offset: 0},
		3:  {Item: 0, Slot: 0, Offset: 3},
		4:  {Item: 0, Slot: 1, Offset: 0},
		7:  {Item: 0, Slot: 1, Offset: 3},
		8:  {Item: 1, Slot: 0, Offset: 0},
		13: {Item: 1, Slot: 1, Offset: 1},
	}
	for offset, want := range cases {
		if got := g.Translate(offset); got != want {
			t.Errorf("Translate(%d) = %+v, want %+v", offset, got, want)
		}
	}

	want := Position{Item: 1, Slot: 1, Offset: 5}
	if got := DefaultGeometry().Translate(4000*1000 + 4005); got != want {
		t.Errorf("Translate with default geometry = %+v, want %+v", got, want)
	}
}

func TestFeatureString(t *testing.T) {
	cases := map[Feature]string{
		FeatureLocate:      "Locate",
		FeatureMemoryLimit: "MemoryLimit",
		Feature(0):         "Unknown",
	}
	for f, want := range cases {
		if got := f.String(); got != want {
			t.Errorf("Feature(%d).String() = %q, want %q", uint64(f), got, want)
		}
	}
}
