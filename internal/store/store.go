package store

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"course-assistant-platform/internal/config"
)

// ErrNotFound reports that no document matched the given identifier.
var ErrNotFound = errors.New("document not found")

// Store wraps the MongoDB collections backing the application's records.
type Store struct {
	db        *mongo.Database
	courses   *mongo.Collection
	materials *mongo.Collection
	chunks    *mongo.Collection
	sessions  *mongo.Collection
	messages  *mongo.Collection
}

func New(client *mongo.Client, cfg *config.Config) *Store {
	db := client.Database(cfg.DBName)
	return &Store{
		db:        db,
		courses:   db.Collection("courses"),
		materials: db.Collection("materials"),
		chunks:    db.Collection("material_chunks"),
		sessions:  db.Collection("chat_sessions"),
		messages:  db.Collection("chat_messages"),
	}
}

func optionsFindSortLimit(sort bson.D, limit int64) *options.FindOptions {
	opts := options.Find()
	if sort != nil {
		opts = opts.SetSort(sort)
	}
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}
	return opts
}

func optionsFindOneSort(sort bson.D) *options.FindOneOptions {
	return options.FindOne().SetSort(sort)
}
