package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"course-assistant-platform/models"
)

type fakeSweepStore struct {
	materials []models.CourseMaterial
	err       error
}

func (f *fakeSweepStore) ListUnprocessedMaterials(ctx context.Context, limit int64) ([]models.CourseMaterial, error) {
	return f.materials, f.err
}

type fakeEnqueuer struct {
	ids     []string
	failFor string
}

func (f *fakeEnqueuer) EnqueueMaterial(materialID string) error {
	if materialID == f.failFor {
		return errors.New("queue unavailable")
	}
	f.ids = append(f.ids, materialID)
	return nil
}

func TestSweepEnqueuesUnprocessed(t *testing.T) {
	materials := []models.CourseMaterial{
		{ID: primitive.NewObjectID()},
		{ID: primitive.NewObjectID()},
	}
	enqueuer := &fakeEnqueuer{}
	s := NewSweeper(&fakeSweepStore{materials: materials}, enqueuer, time.Minute)

	if got := s.Sweep(context.Background()); got != 2 {
		t.Fatalf("Sweep = %d, want 2", got)
	}
	if len(enqueuer.ids) != 2 || enqueuer.ids[0] != materials[0].ID.Hex() {
		t.Errorf("enqueued ids = %v", enqueuer.ids)
	}
}

func TestSweepNothingPending(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	s := NewSweeper(&fakeSweepStore{}, enqueuer, time.Minute)

	if got := s.Sweep(context.Background()); got != 0 {
		t.Fatalf("Sweep = %d, want 0", got)
	}
	if len(enqueuer.ids) != 0 {
		t.Errorf("unexpected enqueues: %v", enqueuer.ids)
	}
}

func TestSweepContinuesPastEnqueueFailure(t *testing.T) {
	materials := []models.CourseMaterial{
		{ID: primitive.NewObjectID()},
		{ID: primitive.NewObjectID()},
		{ID: primitive.NewObjectID()},
	}
	enqueuer := &fakeEnqueuer{failFor: materials[1].ID.Hex()}
	s := NewSweeper(&fakeSweepStore{materials: materials}, enqueuer, time.Minute)

	if got := s.Sweep(context.Background()); got != 2 {
		t.Fatalf("Sweep = %d, want 2", got)
	}
}

func TestSweepStoreError(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	s := NewSweeper(&fakeSweepStore{err: errors.New("db down")}, enqueuer, time.Minute)

	if got := s.Sweep(context.Background()); got != 0 {
		t.Fatalf("Sweep = %d, want 0", got)
	}
}
