// Package records persists DEA registry records and the per-record step
// workflow progress.
package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/dea-registry/app/models"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrProgressNotFound = errors.New("step progress not found")
	// ErrProgressConflict the stored progress moved past the expected version
	ErrProgressConflict = errors.New("step progress was modified concurrently")
	ErrUnknownField     = errors.New("unknown record field")
)

// Store record storage consumed by the step workflow and the preprocessor.
//
// WriteProgress is a compare-and-swap on Version: expectedVersion 0 creates
// the document and fails if one exists; otherwise the stored Version must
// equal expectedVersion. On success p.Version is expectedVersion+1.
type Store interface {
	FindRecordByID(ctx context.Context, id string) (*models.DeaRecord, error)
	SaveRecord(ctx context.Context, r *models.DeaRecord) error
	// UpdateRecordFields single atomic update of the named fields
	UpdateRecordFields(ctx context.Context, id string, fields map[string]interface{}) error
	ListByPreprocessingStatus(ctx context.Context, statuses []models.PreprocessingStatus, limit int) ([]models.DeaRecord, error)
	CountByPreprocessingStatus(ctx context.Context) (map[models.PreprocessingStatus]int64, error)

	ReadProgress(ctx context.Context, recordID string) (*models.StepValidationProgress, error)
	WriteProgress(ctx context.Context, p *models.StepValidationProgress, expectedVersion int64) error
	DeleteProgress(ctx context.Context, recordID string) error
}

var updatableFields = map[string]struct{}{
	models.FieldStreetType:              {},
	models.FieldStreetName:              {},
	models.FieldStreetNumber:            {},
	models.FieldPostalCode:              {},
	models.FieldDistrict:                {},
	models.FieldLatitude:                {},
	models.FieldLongitude:               {},
	models.FieldAddressValidationStatus: {},
	models.FieldAddressValidation:       {},
	models.FieldAddressVerifiedAt:       {},
	models.FieldPreprocessingStatus:     {},
	models.FieldPreprocessingRetries:    {},
	models.FieldPreprocessingError:      {},
	models.FieldPreprocessedAt:          {},
}

// CheckFields rejects anything outside the updatable field set
func CheckFields(fields map[string]interface{}) error {
	for k := range fields {
		if _, ok := updatableFields[k]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownField, k)
		}
	}
	return nil
}

// applyFields overlays fields on r through its bson representation, so the
// field names are the same ones the Mongo store $sets.
func applyFields(r *models.DeaRecord, fields map[string]interface{}) error {
	raw, err := bson.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	doc := bson.M{}
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	for k, v := range fields {
		doc[k] = v
	}
	raw, err = bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	var out models.DeaRecord
	if err := bson.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("apply fields: %w", err)
	}
	*r = out
	return nil
}
