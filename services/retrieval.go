package services

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"course-assistant-platform/internal/logger"
	"course-assistant-platform/models"
)

// Placeholder context when a course has no searchable chunks at all. The
// model still needs something to ground on.
const (
	placeholderChunkContent = "This is a course in the system. Please ask questions about the course content."
	placeholderSourceTitle  = "Course Introduction"
)

const (
	contentSearchLimit   = 10
	contentMatchMinimum  = 3
	titleSearchLimit     = 10
	introChunkLimit      = 5
	recentChunkLimit     = 5
	randomChunkLimit     = 10
	searchKeywordMinimum = 4
)

type retrievalStore interface {
	SearchChunkContent(ctx context.Context, courseID primitive.ObjectID, query string, keywords []string, limit int) ([]models.MaterialChunk, error)
	SearchChunksByMaterialTitle(ctx context.Context, courseID primitive.ObjectID, keywords []string, limit int) ([]models.MaterialChunk, error)
	FirstChunks(ctx context.Context, courseID primitive.ObjectID, limit int) ([]models.MaterialChunk, error)
	RecentChunks(ctx context.Context, courseID primitive.ObjectID, limit int) ([]models.MaterialChunk, error)
	RandomChunks(ctx context.Context, courseID primitive.ObjectID, limit int) ([]models.MaterialChunk, error)
	ListProcessedMaterials(ctx context.Context, courseID primitive.ObjectID) ([]models.CourseMaterial, error)
	FirstChunkOfMaterial(ctx context.Context, materialID primitive.ObjectID) (*models.MaterialChunk, error)
	RandomChunkOfMaterial(ctx context.Context, materialID primitive.ObjectID) (*models.MaterialChunk, error)
}

// Retriever assembles grounding context for a question. Relevance is
// substring and title matching over chunks, with progressively broader
// fallbacks so a course with any content at all always yields context.
type Retriever struct {
	store retrievalStore
}

func NewRetriever(store retrievalStore) *Retriever {
	return &Retriever{store: store}
}

// queryStopWords extends the embedding stop list with question words, which
// carry no retrieval signal.
var queryStopWords = map[string]bool{
	"the": true, "and": true, "a": true, "an": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "with": true, "by": true, "of": true,
	"is": true, "are": true, "was": true, "were": true, "what": true,
	"when": true, "where": true, "how": true, "why": true, "who": true,
	"which": true, "this": true, "that": true, "these": true, "those": true,
}

// ExtractKeywords lowercases, strips punctuation and drops stop words.
func ExtractKeywords(query string) []string {
	query = strings.ToLower(query)
	query = nonWordChars.ReplaceAllString(query, "")

	var keywords []string
	for _, word := range strings.Fields(query) {
		if queryStopWords[word] {
			continue
		}
		keywords = append(keywords, word)
	}
	return keywords
}

// searchKeywords keeps only keywords long enough to discriminate; short
// tokens match everywhere and drown the results.
func searchKeywords(keywords []string) []string {
	var kept []string
	for _, kw := range keywords {
		if len(kw) >= searchKeywordMinimum {
			kept = append(kept, kw)
		}
	}
	return kept
}

// FindRelevantChunks runs the retrieval cascade for a question:
//
//  1. content substring search, accepted when it finds enough matches
//  2. material title search
//  3. introductory plus recent chunks
//  4. random sample as the last resort
//
// A store error at one tier logs and falls through to the next.
func (r *Retriever) FindRelevantChunks(ctx context.Context, courseID primitive.ObjectID, query string) []models.MaterialChunk {
	keywords := ExtractKeywords(query)
	logger.Info("Finding relevant chunks",
		"course_id", courseID.Hex(), "keywords", strings.Join(keywords, ","))

	searchable := searchKeywords(keywords)

	chunks, err := r.store.SearchChunkContent(ctx, courseID, query, searchable, contentSearchLimit)
	if err != nil {
		logger.Error("Content search failed", "error", err)
	} else if len(chunks) >= contentMatchMinimum {
		logger.Info("Found chunks using keyword search", "count", len(chunks))
		return chunks
	}

	chunks, err = r.store.SearchChunksByMaterialTitle(ctx, courseID, searchable, titleSearchLimit)
	if err != nil {
		logger.Error("Material title search failed", "error", err)
	} else if len(chunks) > 0 {
		logger.Info("Found chunks by material title", "count", len(chunks))
		return chunks
	}

	logger.Info("No specific relevant chunks found, using general course content")

	intro, err := r.store.FirstChunks(ctx, courseID, introChunkLimit)
	if err != nil {
		logger.Error("Intro chunk lookup failed", "error", err)
	}
	recent, err := r.store.RecentChunks(ctx, courseID, recentChunkLimit)
	if err != nil {
		logger.Error("Recent chunk lookup failed", "error", err)
	}
	combined := dedupeChunks(append(intro, recent...))
	if len(combined) > 0 {
		logger.Info("Using general course content", "count", len(combined))
		return combined
	}

	random, err := r.store.RandomChunks(ctx, courseID, randomChunkLimit)
	if err != nil {
		logger.Error("Random chunk lookup failed", "error", err)
		return nil
	}
	return random
}

// GeneralCourseContent samples the course's processed materials: the first
// chunk of each, plus one random chunk when the material has more than one.
// This baseline rides along with every answer so the model always sees a
// cross-section of the course.
func (r *Retriever) GeneralCourseContent(ctx context.Context, courseID primitive.ObjectID) []models.MaterialChunk {
	materials, err := r.store.ListProcessedMaterials(ctx, courseID)
	if err != nil {
		logger.Error("Processed material lookup failed", "error", err)
		return nil
	}
	if len(materials) == 0 {
		logger.Warn("No processed materials found for course", "course_id", courseID.Hex())
		return nil
	}

	var chunks []models.MaterialChunk
	for _, material := range materials {
		first, err := r.store.FirstChunkOfMaterial(ctx, material.ID)
		if err != nil {
			logger.Error("First chunk lookup failed",
				"material_id", material.ID.Hex(), "error", err)
			continue
		}
		if first == nil {
			continue
		}
		chunks = append(chunks, *first)

		random, err := r.store.RandomChunkOfMaterial(ctx, material.ID)
		if err != nil {
			logger.Error("Random chunk lookup failed",
				"material_id", material.ID.Hex(), "error", err)
			continue
		}
		if random != nil && random.ID != first.ID {
			chunks = append(chunks, *random)
		}
	}

	logger.Info("Found general course chunks",
		"count", len(chunks), "materials_count", len(materials))
	return chunks
}

// ContextForQuestion merges question-specific and general chunks, relevant
// ones first, deduplicated. An entirely empty course gets the placeholder
// chunk instead of no context.
func (r *Retriever) ContextForQuestion(ctx context.Context, courseID primitive.ObjectID, query string) []models.MaterialChunk {
	general := r.GeneralCourseContent(ctx, courseID)
	relevant := r.FindRelevantChunks(ctx, courseID, query)

	combined := dedupeChunks(append(relevant, general...))
	logger.Info("Chunks for response",
		"general_count", len(general),
		"relevant_count", len(relevant),
		"combined_count", len(combined),
		"course_id", courseID.Hex())

	if len(combined) == 0 {
		logger.Error("No chunks found for course", "course_id", courseID.Hex())
		combined = []models.MaterialChunk{{
			MaterialTitle: placeholderSourceTitle,
			Content:       placeholderChunkContent,
		}}
	}
	return combined
}

// ExtractSources cites each contributing material once, keeping the first
// chunk seen as the representative.
func ExtractSources(chunks []models.MaterialChunk) []models.SourceRef {
	seen := make(map[primitive.ObjectID]bool)
	var sources []models.SourceRef
	for _, chunk := range chunks {
		if seen[chunk.MaterialID] {
			continue
		}
		seen[chunk.MaterialID] = true
		sources = append(sources, models.SourceRef{
			MaterialID: objectIDString(chunk.MaterialID),
			Title:      chunk.MaterialTitle,
			ChunkID:    objectIDString(chunk.ID),
		})
	}
	return sources
}

func objectIDString(id primitive.ObjectID) string {
	if id.IsZero() {
		return ""
	}
	return id.Hex()
}

func dedupeChunks(chunks []models.MaterialChunk) []models.MaterialChunk {
	seen := make(map[primitive.ObjectID]bool)
	var unique []models.MaterialChunk
	for _, chunk := range chunks {
		if !chunk.ID.IsZero() && seen[chunk.ID] {
			continue
		}
		seen[chunk.ID] = true
		unique = append(unique, chunk)
	}
	return unique
}
