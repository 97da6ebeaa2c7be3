package scroll

import (
	"math"
	"testing"

	apperrors "github.com/GriffinCanCode/scrollshot/internal/errors"
	"github.com/GriffinCanCode/scrollshot/internal/session"
)

type recorder struct {
	moves   [][2]int
	scrolls [][2]int
}

func newRecorded() (*Injector, *recorder) {
	r := &recorder{}
	return &Injector{
		move:   func(x, y int) { r.moves = append(r.moves, [2]int{x, y}) },
		scroll: func(dx, dy int) { r.scrolls = append(r.scrolls, [2]int{dx, dy}) },
	}, r
}

func TestScrollMovesThenScrolls(t *testing.T) {
	inj, r := newRecorded()

	if err := inj.Scroll(session.Point{X: 499.6, Y: 350.2}, -400); err != nil {
		t.Fatalf("Scroll error: %v", err)
	}
	if len(r.moves) != 1 || r.moves[0] != [2]int{500, 350} {
		t.Errorf("moves = %v, want [[500 350]]", r.moves)
	}
	if len(r.scrolls) != 1 || r.scrolls[0] != [2]int{0, -400} {
		t.Errorf("scrolls = %v, want [[0 -400]]", r.scrolls)
	}
}

func TestScrollZeroDelta(t *testing.T) {
	inj, r := newRecorded()

	if err := inj.Scroll(session.Point{X: 1, Y: 1}, 0); err != nil {
		t.Fatalf("Scroll error: %v", err)
	}
	if len(r.moves)+len(r.scrolls) != 0 {
		t.Error("zero delta should not touch the pointer")
	}
}

func TestScrollInvalidPoint(t *testing.T) {
	inj, r := newRecorded()

	tests := []session.Point{
		{X: math.NaN(), Y: 0},
		{X: 0, Y: math.Inf(1)},
	}
	for _, p := range tests {
		err := inj.Scroll(p, -10)
		if !apperrors.IsCode(err, apperrors.CodeScrollFailed) {
			t.Errorf("Scroll(%v) err = %v, want SCROLL_FAILED", p, err)
		}
	}
	if len(r.moves) != 0 {
		t.Error("invalid points must not move the pointer")
	}
}
