package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dea-registry/app/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	recordsCollection  = "dea_records"
	progressCollection = "step_validation_progress"
)

// MongoStore records and progress in MongoDB. Progress documents are keyed
// by record id, so there is at most one active workflow per record.
type MongoStore struct {
	records  *mongo.Collection
	progress *mongo.Collection
	logger   *zap.Logger
}

// NewMongoStore creates a MongoStore over db
func NewMongoStore(db *mongo.Database, logger *zap.Logger) *MongoStore {
	return &MongoStore{
		records:  db.Collection(recordsCollection),
		progress: db.Collection(progressCollection),
		logger:   logger,
	}
}

// EnsureIndexes creates the preprocessing status index
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.records.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "preprocessing_status", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "address_validation_status", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating dea_records indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) FindRecordByID(ctx context.Context, id string) (*models.DeaRecord, error) {
	var r models.DeaRecord
	err := s.records.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding record %s: %w", id, err)
	}
	return &r, nil
}

func (s *MongoStore) SaveRecord(ctx context.Context, r *models.DeaRecord) error {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.PreprocessingStatus == "" {
		r.PreprocessingStatus = models.PreprocessingPending
	}
	_, err := s.records.ReplaceOne(ctx, bson.M{"_id": r.ID}, r, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving record %s: %w", r.ID, err)
	}
	return nil
}

func (s *MongoStore) UpdateRecordFields(ctx context.Context, id string, fields map[string]interface{}) error {
	if err := CheckFields(fields); err != nil {
		return err
	}
	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}
	res, err := s.records.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("updating record %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *MongoStore) ListByPreprocessingStatus(ctx context.Context, statuses []models.PreprocessingStatus, limit int) ([]models.DeaRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.records.Find(ctx, bson.M{"preprocessing_status": bson.M{"$in": statuses}}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.DeaRecord
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding records: %w", err)
	}
	return out, nil
}

func (s *MongoStore) CountByPreprocessingStatus(ctx context.Context) (map[models.PreprocessingStatus]int64, error) {
	cursor, err := s.records.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$preprocessing_status", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("counting records: %w", err)
	}
	defer cursor.Close(ctx)

	counts := make(map[models.PreprocessingStatus]int64)
	for cursor.Next(ctx) {
		var row struct {
			Status models.PreprocessingStatus `bson:"_id"`
			Count  int64                      `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			s.logger.Warn("skipping malformed status count", zap.Error(err))
			continue
		}
		counts[row.Status] = row.Count
	}
	return counts, cursor.Err()
}

func (s *MongoStore) ReadProgress(ctx context.Context, recordID string) (*models.StepValidationProgress, error) {
	var p models.StepValidationProgress
	err := s.progress.FindOne(ctx, bson.M{"_id": recordID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading progress %s: %w", recordID, err)
	}
	return &p, nil
}

func (s *MongoStore) WriteProgress(ctx context.Context, p *models.StepValidationProgress, expectedVersion int64) error {
	next := *p
	next.Version = expectedVersion + 1

	if expectedVersion == 0 {
		_, err := s.progress.InsertOne(ctx, &next)
		if mongo.IsDuplicateKeyError(err) {
			return ErrProgressConflict
		}
		if err != nil {
			return fmt.Errorf("creating progress %s: %w", p.RecordID, err)
		}
		p.Version = next.Version
		return nil
	}

	res, err := s.progress.ReplaceOne(ctx, bson.M{"_id": p.RecordID, "version": expectedVersion}, &next)
	if err != nil {
		return fmt.Errorf("writing progress %s: %w", p.RecordID, err)
	}
	if res.MatchedCount == 0 {
		s.logger.Warn("progress version conflict",
			zap.String("record_id", p.RecordID),
			zap.Int64("expected_version", expectedVersion))
		return ErrProgressConflict
	}
	p.Version = next.Version
	return nil
}

func (s *MongoStore) DeleteProgress(ctx context.Context, recordID string) error {
	res, err := s.progress.DeleteOne(ctx, bson.M{"_id": recordID})
	if err != nil {
		return fmt.Errorf("deleting progress %s: %w", recordID, err)
	}
	if res.DeletedCount == 0 {
		return ErrProgressNotFound
	}
	return nil
}
