package records

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dea-registry/app/models"
)

// MemoryStore in-process Store for tests and single-node demos
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]models.DeaRecord
	progress map[string]*models.StepValidationProgress
}

// NewMemoryStore creates a MemoryStore holding records
func NewMemoryStore(records ...models.DeaRecord) *MemoryStore {
	s := &MemoryStore{
		records:  make(map[string]models.DeaRecord, len(records)),
		progress: make(map[string]*models.StepValidationProgress),
	}
	for _, r := range records {
		if r.PreprocessingStatus == "" {
			r.PreprocessingStatus = models.PreprocessingPending
		}
		s.records[r.ID] = r
	}
	return s
}

func (s *MemoryStore) FindRecordByID(ctx context.Context, id string) (*models.DeaRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &r, nil
}

func (s *MemoryStore) SaveRecord(ctx context.Context, r *models.DeaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.PreprocessingStatus == "" {
		r.PreprocessingStatus = models.PreprocessingPending
	}
	s.records[r.ID] = *r
	return nil
}

func (s *MemoryStore) UpdateRecordFields(ctx context.Context, id string, fields map[string]interface{}) error {
	if err := CheckFields(fields); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	if err := applyFields(&r, fields); err != nil {
		return err
	}
	r.UpdatedAt = time.Now().UTC()
	s.records[id] = r
	return nil
}

func (s *MemoryStore) ListByPreprocessingStatus(ctx context.Context, statuses []models.PreprocessingStatus, limit int) ([]models.DeaRecord, error) {
	want := make(map[models.PreprocessingStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	s.mu.RLock()
	out := make([]models.DeaRecord, 0)
	for _, r := range s.records {
		if want[r.PreprocessingStatus] {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CountByPreprocessingStatus(ctx context.Context) (map[models.PreprocessingStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.PreprocessingStatus]int64)
	for _, r := range s.records {
		counts[r.PreprocessingStatus]++
	}
	return counts, nil
}

func (s *MemoryStore) ReadProgress(ctx context.Context, recordID string) (*models.StepValidationProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.progress[recordID]
	if !ok {
		return nil, ErrProgressNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) WriteProgress(ctx context.Context, p *models.StepValidationProgress, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.progress[p.RecordID]
	switch {
	case expectedVersion == 0 && exists:
		return ErrProgressConflict
	case expectedVersion != 0 && (!exists || current.Version != expectedVersion):
		return ErrProgressConflict
	}
	p.Version = expectedVersion + 1
	s.progress[p.RecordID] = p.Clone()
	return nil
}

func (s *MemoryStore) DeleteProgress(ctx context.Context, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.progress[recordID]; !ok {
		return ErrProgressNotFound
	}
	delete(s.progress, recordID)
	return nil
}
