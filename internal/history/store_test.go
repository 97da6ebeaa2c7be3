package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"

	apperrors "github.com/GriffinCanCode/scrollshot/internal/errors"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesSchema(t *testing.T) {
	s := openTemp(t)

	version, err := s.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("version = %d, want %d", version, len(migrations))
	}
	if _, err := os.Stat(s.Path()); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Record(context.Background(), Record{SessionID: "a", Reason: "max_steps"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	list, err := s.List(context.Background(), 0)
	if err != nil || len(list) != 1 {
		t.Errorf("List after reopen = %d records, %v", len(list), err)
	}
}

func TestRecordAndGet(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rec := Record{
		SessionID:  "abc123",
		StartedAt:  start,
		FinishedAt: start.Add(4 * time.Second),
		Reason:     "end_of_content",
		Frames:     3,
		Steps:      2,
		Overlaps:   []int{200, 550},
		Width:      1600,
		Height:     1050,
		Output:     "/tmp/scrollshot.png",
	}
	id, err := s.Record(ctx, rec)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id <= 0 {
		t.Fatalf("id = %d, want > 0", id)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SessionID != rec.SessionID || got.Reason != rec.Reason || got.Output != rec.Output {
		t.Errorf("Get = %+v, want %+v", got, rec)
	}
	if got.Frames != 3 || got.Steps != 2 || got.Width != 1600 || got.Height != 1050 {
		t.Errorf("counts = %+v", got)
	}
	if len(got.Overlaps) != 2 || got.Overlaps[0] != 200 || got.Overlaps[1] != 550 {
		t.Errorf("overlaps = %v, want [200 550]", got.Overlaps)
	}
	if !got.StartedAt.Equal(rec.StartedAt) || !got.FinishedAt.Equal(rec.FinishedAt) {
		t.Errorf("times = %v..%v, want %v..%v", got.StartedAt, got.FinishedAt, rec.StartedAt, rec.FinishedAt)
	}
}

func TestGetNotFound(t *testing.T) {
	s := openTemp(t)

	_, err := s.Get(context.Background(), 999)
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	for _, id := range []string{"first", "second", "third"} {
		if _, err := s.Record(ctx, Record{SessionID: id, Reason: "cancelled"}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	list, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].SessionID != "third" || list[1].SessionID != "second" {
		t.Errorf("order = %s, %s; want third, second", list[0].SessionID, list[1].SessionID)
	}
	if list[0].Overlaps == nil {
		t.Error("nil overlaps should round-trip as an empty list")
	}
}

func TestInMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := s.Record(context.Background(), Record{SessionID: "m"}); err != nil {
		t.Errorf("Record: %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.Code
	}{
		{"busy", sqlite3.Error{Code: sqlite3.ErrBusy}, apperrors.CodeStoreBusy},
		{"locked", sqlite3.Error{Code: sqlite3.ErrLocked}, apperrors.CodeStoreBusy},
		{"constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, apperrors.CodeStoreFailed},
		{"other", errors.New("disk full"), apperrors.CodeStoreFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err, "op"); !apperrors.IsCode(got, tt.want) {
				t.Errorf("classify = %v, want %s", got, tt.want)
			}
		})
	}
}

func TestRecordAfterClose(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Close()

	if _, err := s.Record(context.Background(), Record{SessionID: "x"}); !apperrors.IsCode(err, apperrors.CodeStoreFailed) {
		t.Errorf("err = %v, want STORE_FAILED", err)
	}
}
