package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dea-registry/app/config"
	"github.com/dea-registry/app/models"
	"github.com/dea-registry/internal/records"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Run states
const (
	RunStatusRunning   = "running"
	RunStatusDone      = "done"
	RunStatusCancelled = "cancelled"
	RunStatusFailed    = "failed"
)

// errRecordTimeout per-record validation exceeded BatchCfg.RecordTimeout
var errRecordTimeout = errors.New("record validation timed out")

// PreprocessOptions selects the records of a run
type PreprocessOptions struct {
	RetryFailed bool `json:"retry_failed"` // Incluir los registros en estado failed
	Limit       int  `json:"limit"`        // 0 = todos
}

// PreprocessRun progress of one bulk preprocessing run
type PreprocessRun struct {
	RunID             string     `json:"run_id"`
	Status            string     `json:"status"`
	Total             int        `json:"total"`
	Processed         int        `json:"processed"`
	Succeeded         int        `json:"succeeded"`
	Failed            int        `json:"failed"`
	PermanentlyFailed int        `json:"permanently_failed"`
	Batches           int        `json:"batches"`
	Message           string     `json:"message"`
	StartedAt         time.Time  `json:"started_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
}

// Progress fraction of records processed
func (r PreprocessRun) Progress() float64 {
	if r.Total == 0 {
		return 1
	}
	return float64(r.Processed) / float64(r.Total)
}

// PreprocessingService bulk-validates pending registry records. Records of a
// batch run concurrently and one failure never stops its siblings; batches
// run one after another with a cooldown in between.
type PreprocessingService struct {
	store     records.Store
	validator AddressValidator
	cfg       config.BatchCfg
	limiter   *rate.Limiter
	logger    *zap.Logger

	mu       sync.RWMutex
	runs     map[string]*PreprocessRun
	cancels  map[string]context.CancelFunc
	inFlight map[string]struct{} // record IDs being validated by this process

	now func() time.Time
}

// NewPreprocessingService creates the service. A zero RatePerSecond disables
// rate limiting.
func NewPreprocessingService(store records.Store, validator AddressValidator, cfg config.BatchCfg, logger *zap.Logger) *PreprocessingService {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	if cfg.Size <= 0 {
		cfg.Size = config.Default().Batch.Size
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = config.Default().Batch.RecordTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = config.Default().Batch.MaxRetries
	}
	return &PreprocessingService{
		store:     store,
		validator: validator,
		cfg:       cfg,
		limiter:   rate.NewLimiter(limit, cfg.Size),
		logger:    logger,
		runs:      make(map[string]*PreprocessRun),
		cancels:   make(map[string]context.CancelFunc),
		inFlight:  make(map[string]struct{}),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start launches a run in the background and returns its initial state
func (s *PreprocessingService) Start(opts PreprocessOptions) (*PreprocessRun, error) {
	ctx, cancel := context.WithCancel(context.Background())
	run, targets, err := s.prepare(ctx, opts)
	if err != nil {
		cancel()
		return nil, err
	}
	s.mu.Lock()
	s.cancels[run.RunID] = cancel
	s.mu.Unlock()

	go func() {
		defer cancel()
		s.execute(ctx, run.RunID, targets)
		s.mu.Lock()
		delete(s.cancels, run.RunID)
		s.mu.Unlock()
	}()
	return s.snapshot(run.RunID), nil
}

// Run processes every selected record and blocks until the run ends
func (s *PreprocessingService) Run(ctx context.Context, opts PreprocessOptions) (*PreprocessRun, error) {
	run, targets, err := s.prepare(ctx, opts)
	if err != nil {
		return nil, err
	}
	s.execute(ctx, run.RunID, targets)
	return s.snapshot(run.RunID), nil
}

// GetRun current state of a run
func (s *PreprocessingService) GetRun(runID string) (*PreprocessRun, error) {
	if run := s.snapshot(runID); run != nil {
		return run, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
}

// ListRuns every run known to this process, newest first
func (s *PreprocessingService) ListRuns() []PreprocessRun {
	s.mu.RLock()
	out := make([]PreprocessRun, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, *r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// CancelRun stops a background run after the records already in flight
func (s *PreprocessingService) CancelRun(runID string) error {
	s.mu.RLock()
	cancel, ok := s.cancels[runID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	cancel()
	return nil
}

func (s *PreprocessingService) prepare(ctx context.Context, opts PreprocessOptions) (*PreprocessRun, []models.DeaRecord, error) {
	statuses := []models.PreprocessingStatus{models.PreprocessingPending}
	if opts.RetryFailed {
		// processing records left behind by a crashed worker are retried too
		statuses = append(statuses, models.PreprocessingFailed, models.PreprocessingInProgress)
	}
	listed, err := s.store.ListByPreprocessingStatus(ctx, statuses, opts.Limit)
	if err != nil {
		return nil, nil, fmt.Errorf("listing records to preprocess: %w", err)
	}
	targets := listed[:0]
	s.mu.RLock()
	for _, rec := range listed {
		if _, busy := s.inFlight[rec.ID]; !busy {
			targets = append(targets, rec)
		}
	}
	s.mu.RUnlock()

	now := s.now()
	run := &PreprocessRun{
		RunID:     uuid.NewString(),
		Status:    RunStatusRunning,
		Total:     len(targets),
		Message:   "Preprocesando registros...",
		StartedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.runs[run.RunID] = run
	s.mu.Unlock()

	s.logger.Info("preprocessing run started",
		zap.String("run_id", run.RunID),
		zap.Int("records", run.Total),
		zap.Bool("retry_failed", opts.RetryFailed))
	return run, targets, nil
}

func (s *PreprocessingService) execute(ctx context.Context, runID string, targets []models.DeaRecord) {
	status, message := RunStatusDone, "Preprocesado completado"

	for start := 0; start < len(targets); start += s.cfg.Size {
		if start > 0 && s.cfg.Cooldown > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.cfg.Cooldown):
			}
		}
		if ctx.Err() != nil {
			status, message = RunStatusCancelled, "Preprocesado cancelado"
			break
		}

		end := start + s.cfg.Size
		if end > len(targets) {
			end = len(targets)
		}
		s.processBatch(ctx, runID, targets[start:end])
		s.update(runID, func(r *PreprocessRun) { r.Batches++ })
	}

	finished := s.now()
	s.update(runID, func(r *PreprocessRun) {
		r.Status = status
		r.Message = message
		r.FinishedAt = &finished
	})
	run := s.snapshot(runID)
	s.logger.Info("preprocessing run finished",
		zap.String("run_id", runID),
		zap.String("status", run.Status),
		zap.Int("processed", run.Processed),
		zap.Int("succeeded", run.Succeeded),
		zap.Int("failed", run.Failed),
		zap.Int("permanently_failed", run.PermanentlyFailed))
}

func (s *PreprocessingService) processBatch(ctx context.Context, runID string, batch []models.DeaRecord) {
	var g errgroup.Group
	g.SetLimit(s.cfg.Size)
	for i := range batch {
		rec := batch[i]
		g.Go(func() error {
			outcome := s.processRecord(ctx, &rec)
			if outcome == models.PreprocessingPending {
				return nil
			}
			s.update(runID, func(r *PreprocessRun) {
				r.Processed++
				switch outcome {
				case models.PreprocessingDone:
					r.Succeeded++
				case models.PreprocessingFailed:
					r.Failed++
				case models.PreprocessingFailedPermanent:
					r.PermanentlyFailed++
				}
			})
			return nil
		})
	}
	_ = g.Wait()
}

// processRecord validates one record and stores the outcome on it.
// Pending is returned for records left untouched by a cancelled run.
func (s *PreprocessingService) processRecord(ctx context.Context, rec *models.DeaRecord) models.PreprocessingStatus {
	log := s.logger.With(zap.String("record_id", rec.ID))
	if ctx.Err() != nil {
		return models.PreprocessingPending
	}

	s.mu.Lock()
	s.inFlight[rec.ID] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, rec.ID)
		s.mu.Unlock()
	}()

	if err := s.store.UpdateRecordFields(ctx, rec.ID, map[string]interface{}{
		models.FieldPreprocessingStatus: models.PreprocessingInProgress,
	}); err != nil {
		if ctx.Err() != nil {
			return s.release(ctx, rec)
		}
		log.Error("marking record in progress", zap.Error(err))
		return s.markFailed(ctx, rec, err, false)
	}

	result, err := s.validateWithTimeout(ctx, rec.Query())
	if err != nil {
		if ctx.Err() != nil {
			log.Info("record released, run cancelled")
			return s.release(ctx, rec)
		}
		log.Warn("record preprocessing failed", zap.Error(err))
		return s.markFailed(ctx, rec, err, errors.Is(err, ErrInvalidPayload))
	}

	now := s.now()
	fields := map[string]interface{}{
		models.FieldAddressValidation:       &result,
		models.FieldAddressValidationStatus: result.OverallStatus,
		models.FieldPreprocessingStatus:     models.PreprocessingDone,
		models.FieldPreprocessingError:      "",
		models.FieldPreprocessedAt:          now,
	}
	if err := s.store.UpdateRecordFields(ctx, rec.ID, fields); err != nil {
		log.Error("storing preprocessing result", zap.Error(err))
		return s.markFailed(ctx, rec, err, false)
	}
	log.Debug("record preprocessed",
		zap.String("overall_status", string(result.OverallStatus)),
		zap.Float64("confidence", result.SearchResult.Confidence))
	return models.PreprocessingDone
}

// validateWithTimeout bounds one validation by RecordTimeout; a late result
// is discarded.
func (s *PreprocessingService) validateWithTimeout(ctx context.Context, q models.AddressQuery) (models.ComprehensiveAddressValidation, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return models.ComprehensiveAddressValidation{}, err
	}

	rctx, cancel := context.WithTimeout(ctx, s.cfg.RecordTimeout)
	defer cancel()

	type outcome struct {
		result models.ComprehensiveAddressValidation
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := s.validator.ValidateAddress(rctx, q)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-rctx.Done():
		if errors.Is(rctx.Err(), context.DeadlineExceeded) {
			return models.ComprehensiveAddressValidation{}, fmt.Errorf("%w after %s", errRecordTimeout, s.cfg.RecordTimeout)
		}
		return models.ComprehensiveAddressValidation{}, rctx.Err()
	}
}

// markFailed bumps the retry counter; at MaxRetries, or for input errors,
// the record is failed permanently. The last error is kept on the record.
func (s *PreprocessingService) markFailed(ctx context.Context, rec *models.DeaRecord, cause error, permanent bool) models.PreprocessingStatus {
	retries := rec.PreprocessingRetries + 1
	status := models.PreprocessingFailed
	if permanent || retries >= s.cfg.MaxRetries {
		status = models.PreprocessingFailedPermanent
	}

	// the run context may already be cancelled; the failure still has to land
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.UpdateRecordFields(wctx, rec.ID, map[string]interface{}{
		models.FieldPreprocessingStatus:  status,
		models.FieldPreprocessingRetries: retries,
		models.FieldPreprocessingError:   cause.Error(),
	}); err != nil {
		s.logger.Error("storing preprocessing failure", zap.String("record_id", rec.ID), zap.Error(err))
	}
	return status
}

// release puts a record interrupted by cancellation back to its previous
// status without counting an attempt
func (s *PreprocessingService) release(ctx context.Context, rec *models.DeaRecord) models.PreprocessingStatus {
	status := rec.PreprocessingStatus
	if status == "" || status == models.PreprocessingInProgress {
		status = models.PreprocessingPending
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.UpdateRecordFields(wctx, rec.ID, map[string]interface{}{
		models.FieldPreprocessingStatus: status,
	}); err != nil {
		s.logger.Error("releasing record", zap.String("record_id", rec.ID), zap.Error(err))
	}
	return models.PreprocessingPending
}

func (s *PreprocessingService) update(runID string, fn func(*PreprocessRun)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[runID]; ok {
		fn(r)
		r.UpdatedAt = s.now()
	}
}

func (s *PreprocessingService) snapshot(runID string) *PreprocessRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[runID]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}
