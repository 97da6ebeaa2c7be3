package main

import (
	"testing"

	apperrors "github.com/GriffinCanCode/scrollshot/internal/errors"
	"github.com/GriffinCanCode/scrollshot/internal/session"
)

func TestParseRegion(t *testing.T) {
	got, err := parseRegion("10, 20.5,800,600")
	if err != nil {
		t.Fatalf("parseRegion: %v", err)
	}
	want := session.Rect{X: 10, Y: 20.5, Width: 800, Height: 600}
	if got != want {
		t.Errorf("parseRegion = %+v, want %+v", got, want)
	}

	for _, in := range []string{"", "1,2,3", "a,b,c,d", "0,0,0,10", "0,0,10,-1"} {
		if _, err := parseRegion(in); !apperrors.IsCode(err, apperrors.CodeInvalidArgument) {
			t.Errorf("parseRegion(%q) err = %v, want INVALID_ARGUMENT", in, err)
		}
	}
}
