package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"course-assistant-platform/models"
)

func (s *Store) InsertMaterial(ctx context.Context, m *models.CourseMaterial) error {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	_, err := s.materials.InsertOne(ctx, m)
	return err
}

func (s *Store) FindMaterial(ctx context.Context, id primitive.ObjectID) (*models.CourseMaterial, error) {
	var m models.CourseMaterial
	err := s.materials.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListMaterialsByCourse(ctx context.Context, courseID primitive.ObjectID) ([]models.CourseMaterial, error) {
	cursor, err := s.materials.Find(ctx, bson.M{"course_id": courseID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var materials []models.CourseMaterial
	if err := cursor.All(ctx, &materials); err != nil {
		return nil, err
	}
	return materials, nil
}

// ListProcessedMaterials returns the course's fully processed materials,
// the population the general-content sampler draws from.
func (s *Store) ListProcessedMaterials(ctx context.Context, courseID primitive.ObjectID) ([]models.CourseMaterial, error) {
	cursor, err := s.materials.Find(ctx, bson.M{"course_id": courseID, "is_processed": true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var materials []models.CourseMaterial
	if err := cursor.All(ctx, &materials); err != nil {
		return nil, err
	}
	return materials, nil
}

// ListUnprocessedMaterials returns materials the sweep should re-enqueue,
// oldest upload first.
func (s *Store) ListUnprocessedMaterials(ctx context.Context, limit int64) ([]models.CourseMaterial, error) {
	opts := optionsFindSortLimit(bson.D{{Key: "uploaded_at", Value: 1}}, limit)
	cursor, err := s.materials.Find(ctx, bson.M{"is_processed": false}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var materials []models.CourseMaterial
	if err := cursor.All(ctx, &materials); err != nil {
		return nil, err
	}
	return materials, nil
}

// SetMaterialText stores extracted text together with the rebuilt processing
// status in one write.
func (s *Store) SetMaterialText(ctx context.Context, id primitive.ObjectID, text string, status models.ProcessingStatus) error {
	_, err := s.materials.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"content_text": text,
			"processing":   status,
		},
	})
	return err
}

// SetMaterialStatus replaces the whole processing status record. Writing the
// full value avoids inconsistent partial states under concurrent writers.
func (s *Store) SetMaterialStatus(ctx context.Context, id primitive.ObjectID, status models.ProcessingStatus) error {
	_, err := s.materials.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"processing": status},
	})
	return err
}

func (s *Store) MarkMaterialProcessed(ctx context.Context, id primitive.ObjectID, status models.ProcessingStatus) error {
	now := time.Now()
	_, err := s.materials.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"processing":   status,
			"is_processed": true,
			"processed_at": now,
		},
	})
	return err
}

// DeleteMaterial removes the material and cascades to its chunks.
func (s *Store) DeleteMaterial(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.chunks.DeleteMany(ctx, bson.M{"material_id": id}); err != nil {
		return err
	}
	res, err := s.materials.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
