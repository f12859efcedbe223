package store

import (
	"errors"
	"testing"

	"github.com/ayusman/lune/internal/detector"
	"github.com/ayusman/lune/internal/geometry"
	"github.com/ayusman/lune/internal/handsize"
)

func newRecording(name string) *Recording {
	return &Recording{
		Name:     name,
		Gender:   handsize.Male,
		HandSize: handsize.L,
		Viewport: geometry.Viewport{Width: 1280, Height: 720},
	}
}

func TestRecordingRepository_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	repo := s.Recordings()

	rec := newRecording("left hand")
	if err := repo.Create(rec); err != nil {
		t.Fatalf("failed to create recording: %v", err)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Fatalf("Create should assign ID and CreatedAt, got %+v", rec)
	}

	got, err := repo.GetByID(rec.ID)
	if err != nil {
		t.Fatalf("failed to get recording: %v", err)
	}
	if got.Name != "left hand" || got.Gender != handsize.Male || got.HandSize != handsize.L {
		t.Errorf("unexpected recording %+v", got)
	}
	if got.Viewport != rec.Viewport {
		t.Errorf("viewport = %+v, want %+v", got.Viewport, rec.Viewport)
	}
	if got.Frames != 0 {
		t.Errorf("new recording should have no frames, got %d", got.Frames)
	}
}

func TestRecordingRepository_CreateRejectsBadViewport(t *testing.T) {
	s := newTestStore(t)
	rec := newRecording("broken")
	rec.Viewport = geometry.Viewport{}
	if err := s.Recordings().Create(rec); err == nil {
		t.Error("expected error for empty viewport")
	}
}

func TestRecordingRepository_GetByID_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Recordings().GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordingRepository_ListAndDelete(t *testing.T) {
	s := newTestStore(t)
	repo := s.Recordings()

	for _, name := range []string{"a", "b", "c"} {
		if err := repo.Create(newRecording(name)); err != nil {
			t.Fatalf("failed to create recording: %v", err)
		}
	}

	list, err := repo.List()
	if err != nil {
		t.Fatalf("failed to list recordings: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 recordings, got %d", len(list))
	}

	if err := repo.Delete(list[0].ID); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if err := repo.Delete(list[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete should be ErrNotFound, got %v", err)
	}

	list, _ = repo.List()
	if len(list) != 2 {
		t.Errorf("expected 2 recordings after delete, got %d", len(list))
	}
}

func TestFrameRepository_AppendAndList(t *testing.T) {
	s := newTestStore(t)
	rec := newRecording("frames")
	if err := s.Recordings().Create(rec); err != nil {
		t.Fatalf("failed to create recording: %v", err)
	}

	palm := detector.OpenPalmLandmarks()
	frames := []Frame{
		{TimestampMs: 0, Hand: &palm},
		{TimestampMs: 33},
		{TimestampMs: 66, Hand: &palm},
	}

	n, err := s.Frames().Append(rec.ID, frames)
	if err != nil {
		t.Fatalf("failed to append frames: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 frames, got %d", n)
	}

	n, err = s.Frames().Append(rec.ID, []Frame{{TimestampMs: 99, Hand: &palm}})
	if err != nil {
		t.Fatalf("failed to append frames: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 frames, got %d", n)
	}

	got, err := s.Frames().List(rec.ID)
	if err != nil {
		t.Fatalf("failed to list frames: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 frames, got %d", len(got))
	}
	for i, f := range got {
		if f.Seq != i {
			t.Errorf("frame %d has seq %d", i, f.Seq)
		}
	}
	if got[1].Hand != nil {
		t.Error("miss frame should decode to a nil hand")
	}
	if got[0].Hand == nil || got[0].Hand.Points != palm.Points {
		t.Error("hand landmarks did not round trip")
	}
	if got[3].TimestampMs != 99 {
		t.Errorf("expected timestamp 99, got %d", got[3].TimestampMs)
	}

	stored, _ := s.Recordings().GetByID(rec.ID)
	if stored.Frames != 4 {
		t.Errorf("recording frame count = %d, want 4", stored.Frames)
	}
}

func TestFrameRepository_AppendUnknownRecording(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Frames().Append("missing", []Frame{{}}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFrameRepository_CascadeDelete(t *testing.T) {
	s := newTestStore(t)
	rec := newRecording("cascade")
	if err := s.Recordings().Create(rec); err != nil {
		t.Fatal(err)
	}
	palm := detector.OpenPalmLandmarks()
	if _, err := s.Frames().Append(rec.ID, []Frame{{Hand: &palm}}); err != nil {
		t.Fatal(err)
	}

	if err := s.Recordings().Delete(rec.ID); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM recording_frames WHERE recording_id = ?`, rec.ID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected frames to cascade, %d left", count)
	}
}
