package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dea-registry/app/models"
	"github.com/dea-registry/internal/geo"
	"github.com/dea-registry/internal/normalizer"
	"github.com/dea-registry/internal/records"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const recordLockStripes = 64

var rePostalCode = regexp.MustCompile(`^\d{5}$`)

var stepDefinitions = [models.TotalValidationSteps]struct{ name, title string }{
	{"address", "Confirmar dirección"},
	{"postal_code", "Confirmar código postal"},
	{"district", "Confirmar distrito"},
	{"coordinates", "Confirmar coordenadas"},
}

// StepPayload operator input for ExecuteStep. Only the field of the step
// being executed is read; an empty value accepts the official one.
type StepPayload struct {
	SelectedAddress *models.GazetteerRecord `json:"selected_address,omitempty"`
	PostalCode      string                  `json:"postal_code,omitempty"`
	District        string                  `json:"district,omitempty"`
	Coordinates     *models.Coordinates     `json:"coordinates,omitempty"`
}

// StepOutcome result of Initialize and ExecuteStep
type StepOutcome struct {
	Progress *models.StepValidationProgress `json:"progress"`
	NextStep int                            `json:"next_step"`
	Message  string                         `json:"message"`
}

// StepValidationService 4-step human reconciliation of a record's address.
// Writes for one record are serialized in-process; across processes the
// progress Version makes a stale write fail with records.ErrProgressConflict.
type StepValidationService struct {
	store      records.Store
	validator  AddressValidator
	skipMeters float64
	logger     *zap.Logger
	locks      [recordLockStripes]sync.Mutex
	now        func() time.Time
}

// NewStepValidationService creates the service. skipMeters is the step-4
// auto-skip distance.
func NewStepValidationService(store records.Store, validator AddressValidator, skipMeters float64, logger *zap.Logger) *StepValidationService {
	return &StepValidationService{
		store:      store,
		validator:  validator,
		skipMeters: skipMeters,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *StepValidationService) lock(recordID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(recordID))
	m := &s.locks[h.Sum32()%recordLockStripes]
	m.Lock()
	return m.Unlock
}

// InitializeStepValidation creates the progress for recordID with step 1
// current. An existing progress is returned unchanged.
func (s *StepValidationService) InitializeStepValidation(ctx context.Context, recordID string) (*StepOutcome, error) {
	unlock := s.lock(recordID)
	defer unlock()

	if _, err := s.store.FindRecordByID(ctx, recordID); err != nil {
		return nil, err
	}

	existing, err := s.store.ReadProgress(ctx, recordID)
	switch {
	case err == nil:
		return &StepOutcome{
			Progress: existing,
			NextStep: existing.CurrentStep,
			Message:  "La validación de este registro ya estaba iniciada",
		}, nil
	case !errors.Is(err, records.ErrProgressNotFound):
		return nil, err
	}

	now := s.now()
	p := &models.StepValidationProgress{
		ID:            uuid.NewString(),
		RecordID:      recordID,
		SchemaVersion: models.ProgressSchemaVersion,
		CurrentStep:   models.StepAddress,
		TotalSteps:    models.TotalValidationSteps,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i, def := range stepDefinitions {
		p.Steps[i] = models.ValidationStep{
			Number: i + 1,
			Name:   def.name,
			Title:  def.title,
			Status: models.StepStatusPending,
		}
	}
	p.Steps[0].Status = models.StepStatusCurrent

	if err := s.store.WriteProgress(ctx, p, 0); err != nil {
		return nil, fmt.Errorf("creating step progress: %w", err)
	}
	s.logger.Info("step validation initialized", zap.String("record_id", recordID), zap.String("progress_id", p.ID))
	return &StepOutcome{
		Progress: p,
		NextStep: models.StepAddress,
		Message:  "Validación iniciada: confirme la dirección",
	}, nil
}

// ExecuteStep resolves one step. Nothing is persisted when it fails.
func (s *StepValidationService) ExecuteStep(ctx context.Context, recordID string, step int, payload StepPayload) (*StepOutcome, error) {
	if step < models.StepAddress || step > models.StepCoordinates {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStep, step)
	}

	unlock := s.lock(recordID)
	defer unlock()

	record, err := s.store.FindRecordByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	stored, err := s.store.ReadProgress(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if stored.IsComplete {
		return nil, ErrWorkflowComplete
	}
	if stored.Step(step).Done() {
		return nil, fmt.Errorf("%w: %d", ErrStepAlreadyCompleted, step)
	}
	for n := models.StepAddress; n < step; n++ {
		if !stored.Step(n).Done() {
			return nil, fmt.Errorf("%w: step %d is pending", ErrPreviousStepsIncomplete, n)
		}
	}

	p := stored.Clone()
	now := s.now()
	var message string

	switch step {
	case models.StepAddress:
		message, err = s.executeAddress(ctx, record, p, payload, now)
	case models.StepPostalCode:
		message, err = s.executePostalCode(record, p, payload, now)
	case models.StepDistrict:
		message, err = s.executeDistrict(record, p, payload, now)
	case models.StepCoordinates:
		message, err = s.executeCoordinates(record, p, payload, now)
	}
	if err != nil {
		return nil, err
	}

	p.CurrentStep = p.NextOpenStep(step)
	p.UpdatedAt = now
	if p.CurrentStep == models.StepDone {
		p.IsComplete = true
		p.CompletedAt = &now
		if err := s.applyCorrections(ctx, record.ID, p, now); err != nil {
			return nil, err
		}
		message = "Validación completada: se han aplicado las correcciones al registro"
	} else {
		p.Step(p.CurrentStep).Status = models.StepStatusCurrent
	}

	if err := s.store.WriteProgress(ctx, p, stored.Version); err != nil {
		return nil, fmt.Errorf("saving step progress: %w", err)
	}
	s.logger.Info("validation step executed",
		zap.String("record_id", recordID),
		zap.Int("step", step),
		zap.Int("next_step", p.CurrentStep),
		zap.Bool("complete", p.IsComplete))

	return &StepOutcome{Progress: p, NextStep: p.CurrentStep, Message: message}, nil
}

// GetProgress current progress of recordID
func (s *StepValidationService) GetProgress(ctx context.Context, recordID string) (*models.StepValidationProgress, error) {
	return s.store.ReadProgress(ctx, recordID)
}

// ResetProgress abandons the workflow of recordID
func (s *StepValidationService) ResetProgress(ctx context.Context, recordID string) error {
	unlock := s.lock(recordID)
	defer unlock()
	if err := s.store.DeleteProgress(ctx, recordID); err != nil {
		return err
	}
	s.logger.Info("step validation reset", zap.String("record_id", recordID))
	return nil
}

func (s *StepValidationService) executeAddress(ctx context.Context, record *models.DeaRecord, p *models.StepValidationProgress, payload StepPayload, now time.Time) (string, error) {
	result := &models.AddressStepResult{ConfirmedAt: now}

	if sel := payload.SelectedAddress; sel != nil {
		if err := checkSelectedAddress(sel); err != nil {
			return "", err
		}
		result.Selected = *sel
		result.Confidence = 1
		result.MatchType = models.MatchTypeExact
	} else {
		validation, err := s.validator.ValidateAddress(ctx, record.Query())
		if err != nil && !errors.Is(err, ErrInvalidPayload) {
			return "", fmt.Errorf("validating record address: %w", err)
		}
		best := validation.BestCandidate()
		if err != nil || !validation.SearchResult.IsValid || best == nil {
			return "", fmt.Errorf("%w: seleccione manualmente la dirección oficial del registro", ErrNoValidSuggestion)
		}
		result.Selected = best.Record
		result.Confidence = validation.SearchResult.Confidence
		result.MatchType = validation.SearchResult.MatchType
		result.AutoSelected = true
	}

	p.StepData.Step1 = result
	completeStep(p.Step(models.StepAddress), now)
	skipped := s.evaluateSkips(record, p, now)

	msg := fmt.Sprintf("Dirección confirmada: %s", result.Selected.FullStreet())
	if n := result.Selected.HouseNumberString(); n != "" {
		msg += " " + n
	}
	if skipped > 0 {
		msg += fmt.Sprintf(". %d paso(s) omitido(s) porque ya coinciden con los datos oficiales", skipped)
	}
	return msg, nil
}

// checkSelectedAddress a hand-picked address later becomes the official
// source for steps 2-4, so every field they copy must be usable
func checkSelectedAddress(sel *models.GazetteerRecord) error {
	switch {
	case strings.TrimSpace(sel.StreetName) == "":
		return fmt.Errorf("%w: selected address needs a street name", ErrInvalidPayload)
	case sel.DistrictCode < normalizer.MinDistrict || sel.DistrictCode > normalizer.MaxDistrict:
		return fmt.Errorf("%w: selected address district %d is not 1-21", ErrInvalidPayload, sel.DistrictCode)
	case !rePostalCode.MatchString(strings.TrimSpace(sel.PostalCode)):
		return fmt.Errorf("%w: selected address postal code %q is not 5 digits", ErrInvalidPayload, sel.PostalCode)
	case !geo.InMadrid(sel.Latitude, sel.Longitude):
		return fmt.Errorf("%w: selected address coordinates (%.6f, %.6f) are outside Madrid", ErrInvalidPayload, sel.Latitude, sel.Longitude)
	}
	return nil
}

// evaluateSkips marks steps 2-4 skipped when the record already agrees with
// the confirmed official address. Returns how many were skipped.
func (s *StepValidationService) evaluateSkips(record *models.DeaRecord, p *models.StepValidationProgress, now time.Time) int {
	official := p.StepData.Step1.Selected
	skipped := 0

	if pc := strings.TrimSpace(record.PostalCode); official.PostalCode != "" && pc == official.PostalCode {
		p.StepData.Step2 = &models.PostalCodeStepResult{
			Original: pc, Official: official.PostalCode, Confirmed: official.PostalCode, Skipped: true, At: now,
		}
		skipStep(p.Step(models.StepPostalCode), fmt.Sprintf("El código postal %s ya coincide con el oficial", official.PostalCode), now)
		skipped++
	}

	if code := normalizer.ExtractDistrictNumber(record.District); code != 0 && code == official.DistrictCode {
		p.StepData.Step3 = &models.DistrictStepResult{
			Original: record.District, OfficialCode: code, OfficialName: normalizer.DistrictName(code), ConfirmedCode: code, Skipped: true, At: now,
		}
		skipStep(p.Step(models.StepDistrict), fmt.Sprintf("El distrito %s ya coincide con el oficial", normalizer.DistrictLabel(code)), now)
		skipped++
	}

	if q := record.Query(); q.Coordinates != nil {
		d := geo.HaversineMeters(q.Coordinates.Latitude, q.Coordinates.Longitude, official.Latitude, official.Longitude)
		if d <= s.skipMeters {
			orig := *q.Coordinates
			p.StepData.Step4 = &models.CoordinatesStepResult{
				Original: &orig, Official: official.Coordinates(), Confirmed: orig, DistanceMeters: &d, Skipped: true, At: now,
			}
			skipStep(p.Step(models.StepCoordinates), fmt.Sprintf("Las coordenadas están a %.0f m de la ubicación oficial (%.6f, %.6f)", d, official.Latitude, official.Longitude), now)
			skipped++
		}
	}
	return skipped
}

func (s *StepValidationService) executePostalCode(record *models.DeaRecord, p *models.StepValidationProgress, payload StepPayload, now time.Time) (string, error) {
	official := p.StepData.Step1.Selected.PostalCode
	confirmed := strings.TrimSpace(payload.PostalCode)
	if confirmed == "" {
		confirmed = official
	}
	if !rePostalCode.MatchString(confirmed) {
		return "", fmt.Errorf("%w: el código postal debe tener 5 dígitos", ErrInvalidPayload)
	}
	p.StepData.Step2 = &models.PostalCodeStepResult{
		Original: record.PostalCode, Official: official, Confirmed: confirmed, At: now,
	}
	completeStep(p.Step(models.StepPostalCode), now)
	return fmt.Sprintf("Código postal confirmado: %s", confirmed), nil
}

func (s *StepValidationService) executeDistrict(record *models.DeaRecord, p *models.StepValidationProgress, payload StepPayload, now time.Time) (string, error) {
	official := p.StepData.Step1.Selected.DistrictCode
	confirmed := official
	if strings.TrimSpace(payload.District) != "" {
		confirmed = normalizer.ExtractDistrictNumber(payload.District)
	}
	if confirmed == 0 {
		return "", fmt.Errorf("%w: distrito no reconocido", ErrInvalidPayload)
	}
	p.StepData.Step3 = &models.DistrictStepResult{
		Original: record.District, OfficialCode: official, OfficialName: normalizer.DistrictName(official), ConfirmedCode: confirmed, At: now,
	}
	completeStep(p.Step(models.StepDistrict), now)
	return fmt.Sprintf("Distrito confirmado: %s", normalizer.DistrictLabel(confirmed)), nil
}

func (s *StepValidationService) executeCoordinates(record *models.DeaRecord, p *models.StepValidationProgress, payload StepPayload, now time.Time) (string, error) {
	official := p.StepData.Step1.Selected.Coordinates()
	confirmed := official
	if c := payload.Coordinates; c != nil {
		if !geo.InMadrid(c.Latitude, c.Longitude) {
			return "", fmt.Errorf("%w: las coordenadas están fuera del término municipal de Madrid", ErrInvalidPayload)
		}
		confirmed = *c
	}
	result := &models.CoordinatesStepResult{Official: official, Confirmed: confirmed, At: now}
	if q := record.Query(); q.Coordinates != nil {
		orig := *q.Coordinates
		d := geo.HaversineMeters(orig.Latitude, orig.Longitude, official.Latitude, official.Longitude)
		result.Original = &orig
		result.DistanceMeters = &d
	}
	p.StepData.Step4 = result
	completeStep(p.Step(models.StepCoordinates), now)
	return fmt.Sprintf("Coordenadas confirmadas: %.6f, %.6f", confirmed.Latitude, confirmed.Longitude), nil
}

// applyCorrections writes every confirmed field in one update
func (s *StepValidationService) applyCorrections(ctx context.Context, recordID string, p *models.StepValidationProgress, now time.Time) error {
	sd := p.StepData
	selected := sd.Step1.Selected
	fields := map[string]interface{}{
		models.FieldStreetType:              selected.StreetClass,
		models.FieldStreetName:              selected.StreetName,
		models.FieldAddressValidationStatus: models.StatusValid,
		models.FieldAddressVerifiedAt:       now,
	}
	if n := selected.HouseNumberString(); n != "" {
		fields[models.FieldStreetNumber] = n + selected.NumberSuffix
	}
	if sd.Step2 != nil {
		fields[models.FieldPostalCode] = sd.Step2.Confirmed
	}
	if sd.Step3 != nil {
		fields[models.FieldDistrict] = normalizer.DistrictLabel(sd.Step3.ConfirmedCode)
	}
	if sd.Step4 != nil {
		fields[models.FieldLatitude] = sd.Step4.Confirmed.Latitude
		fields[models.FieldLongitude] = sd.Step4.Confirmed.Longitude
	}
	if err := s.store.UpdateRecordFields(ctx, recordID, fields); err != nil {
		return fmt.Errorf("applying address corrections: %w", err)
	}
	s.logger.Info("address corrections applied", zap.String("record_id", recordID), zap.Int("fields", len(fields)))
	return nil
}

func completeStep(st *models.ValidationStep, now time.Time) {
	st.Status = models.StepStatusCompleted
	st.SkipReason = ""
	st.CompletedAt = &now
}

func skipStep(st *models.ValidationStep, reason string, now time.Time) {
	st.Status = models.StepStatusSkipped
	st.SkipReason = reason
	st.CompletedAt = &now
}
