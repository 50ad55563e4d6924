package store

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"course-assistant-platform/models"
)

// ReplaceChunks deletes any chunks owned by the material and inserts the new
// ordered set. Full replace keeps re-ingestion idempotent.
func (s *Store) ReplaceChunks(ctx context.Context, materialID primitive.ObjectID, chunks []models.MaterialChunk) error {
	if _, err := s.chunks.DeleteMany(ctx, bson.M{"material_id": materialID}); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]interface{}, len(chunks))
	now := time.Now()
	for i := range chunks {
		if chunks[i].ID.IsZero() {
			chunks[i].ID = primitive.NewObjectID()
		}
		chunks[i].CreatedAt = now
		docs[i] = chunks[i]
	}
	_, err := s.chunks.InsertMany(ctx, docs)
	return err
}

// ChunksWithoutEmbedding returns the material's chunks that still lack an
// embedding vector, in sequence order.
func (s *Store) ChunksWithoutEmbedding(ctx context.Context, materialID primitive.ObjectID) ([]models.MaterialChunk, error) {
	filter := bson.M{
		"material_id": materialID,
		"embedding":   bson.M{"$in": bson.A{nil, bson.A{}}},
	}
	cursor, err := s.chunks.Find(ctx, filter, optionsFindSortLimit(bson.D{{Key: "chunk_index", Value: 1}}, 0))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chunks []models.MaterialChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (s *Store) SetChunkEmbedding(ctx context.Context, chunkID primitive.ObjectID, embedding []float64) error {
	_, err := s.chunks.UpdateOne(ctx, bson.M{"_id": chunkID}, bson.M{
		"$set": bson.M{"embedding": embedding},
	})
	return err
}

func (s *Store) CountChunks(ctx context.Context, materialID primitive.ObjectID) (int64, error) {
	return s.chunks.CountDocuments(ctx, bson.M{"material_id": materialID})
}

func (s *Store) ListChunksByMaterial(ctx context.Context, materialID primitive.ObjectID) ([]models.MaterialChunk, error) {
	cursor, err := s.chunks.Find(ctx, bson.M{"material_id": materialID},
		optionsFindSortLimit(bson.D{{Key: "chunk_index", Value: 1}}, 0))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chunks []models.MaterialChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// SearchChunkContent finds course chunks whose content contains the raw query
// or any of the keywords as a substring, longest content first. Longer chunks
// tend to carry richer context, so they rank ahead of shorter matches.
func (s *Store) SearchChunkContent(ctx context.Context, courseID primitive.ObjectID, query string, keywords []string, limit int) ([]models.MaterialChunk, error) {
	patterns := bson.A{bson.M{"content": substringRegex(query)}}
	for _, kw := range keywords {
		patterns = append(patterns, bson.M{"content": substringRegex(kw)})
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"course_id": courseID,
			"$or":       patterns,
		}}},
		bson.D{{Key: "$addFields", Value: bson.M{
			"content_length": bson.M{"$strLenCP": "$content"},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "content_length", Value: -1}}}},
		bson.D{{Key: "$limit", Value: limit}},
	}
	return s.aggregateChunks(ctx, pipeline)
}

// SearchChunksByMaterialTitle finds chunks whose owning material's title
// contains any keyword, ordered by chunk sequence.
func (s *Store) SearchChunksByMaterialTitle(ctx context.Context, courseID primitive.ObjectID, keywords []string, limit int) ([]models.MaterialChunk, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	patterns := bson.A{}
	for _, kw := range keywords {
		patterns = append(patterns, bson.M{"material_title": substringRegex(kw)})
	}
	filter := bson.M{"course_id": courseID, "$or": patterns}
	cursor, err := s.chunks.Find(ctx, filter,
		optionsFindSortLimit(bson.D{{Key: "chunk_index", Value: 1}}, int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chunks []models.MaterialChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// FirstChunks returns up to limit chunks at sequence index 0 across the
// course's materials. First chunks usually hold introductory content.
func (s *Store) FirstChunks(ctx context.Context, courseID primitive.ObjectID, limit int) ([]models.MaterialChunk, error) {
	cursor, err := s.chunks.Find(ctx,
		bson.M{"course_id": courseID, "chunk_index": 0},
		optionsFindSortLimit(nil, int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chunks []models.MaterialChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// RecentChunks returns the most recently created chunks for the course.
func (s *Store) RecentChunks(ctx context.Context, courseID primitive.ObjectID, limit int) ([]models.MaterialChunk, error) {
	cursor, err := s.chunks.Find(ctx, bson.M{"course_id": courseID},
		optionsFindSortLimit(bson.D{{Key: "_id", Value: -1}}, int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chunks []models.MaterialChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// RandomChunks samples up to limit chunks from the course in random order.
func (s *Store) RandomChunks(ctx context.Context, courseID primitive.ObjectID, limit int) ([]models.MaterialChunk, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"course_id": courseID}}},
		bson.D{{Key: "$sample", Value: bson.M{"size": limit}}},
	}
	return s.aggregateChunks(ctx, pipeline)
}

// FirstChunkOfMaterial returns the material's chunk at the lowest sequence
// index, or nil when the material has no chunks.
func (s *Store) FirstChunkOfMaterial(ctx context.Context, materialID primitive.ObjectID) (*models.MaterialChunk, error) {
	var chunk models.MaterialChunk
	err := s.chunks.FindOne(ctx, bson.M{"material_id": materialID},
		optionsFindOneSort(bson.D{{Key: "chunk_index", Value: 1}})).Decode(&chunk)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

// RandomChunkOfMaterial samples one chunk from the material, or nil when the
// material has no chunks.
func (s *Store) RandomChunkOfMaterial(ctx context.Context, materialID primitive.ObjectID) (*models.MaterialChunk, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"material_id": materialID}}},
		bson.D{{Key: "$sample", Value: bson.M{"size": 1}}},
	}
	chunks, err := s.aggregateChunks(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	return &chunks[0], nil
}

func (s *Store) aggregateChunks(ctx context.Context, pipeline mongo.Pipeline) ([]models.MaterialChunk, error) {
	cursor, err := s.chunks.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chunks []models.MaterialChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// substringRegex builds a case-insensitive LIKE '%needle%' equivalent.
func substringRegex(needle string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(needle), Options: "i"}
}
