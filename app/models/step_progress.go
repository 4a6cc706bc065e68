package models

import "time"

// ProgressSchemaVersion bump when StepValidationProgress changes shape
const ProgressSchemaVersion = 1

// Step numbers of the reconciliation workflow
const (
	StepAddress     = 1
	StepPostalCode  = 2
	StepDistrict    = 3
	StepCoordinates = 4
	StepDone        = 5

	TotalValidationSteps = 4
)

// StepStatus estado de un paso
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusCurrent   StepStatus = "current"
	StepStatusCompleted StepStatus = "completed"
	StepStatusSkipped   StepStatus = "skipped"
)

// ValidationStep one of the four human confirmation steps
type ValidationStep struct {
	Number      int        `bson:"number" json:"number"`
	Name        string     `bson:"name" json:"name"`
	Title       string     `bson:"title" json:"title"`
	Status      StepStatus `bson:"status" json:"status"`
	SkipReason  string     `bson:"skip_reason,omitempty" json:"skip_reason,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// Done reports whether the step no longer needs operator input
func (s ValidationStep) Done() bool {
	return s.Status == StepStatusCompleted || s.Status == StepStatusSkipped
}

// AddressStepResult step 1: the confirmed official address
type AddressStepResult struct {
	Selected     GazetteerRecord `bson:"selected" json:"selected"`
	Confidence   float64         `bson:"confidence" json:"confidence"`
	MatchType    MatchType       `bson:"match_type" json:"match_type"`
	AutoSelected bool            `bson:"auto_selected" json:"auto_selected"` // Tomada de la validación automática
	ConfirmedAt  time.Time       `bson:"confirmed_at" json:"confirmed_at"`
}

// PostalCodeStepResult step 2
type PostalCodeStepResult struct {
	Original  string    `bson:"original" json:"original"`
	Official  string    `bson:"official" json:"official"`
	Confirmed string    `bson:"confirmed" json:"confirmed"`
	Skipped   bool      `bson:"skipped" json:"skipped"`
	At        time.Time `bson:"at" json:"at"`
}

// DistrictStepResult step 3
type DistrictStepResult struct {
	Original      string    `bson:"original" json:"original"`
	OfficialCode  int       `bson:"official_code" json:"official_code"`
	OfficialName  string    `bson:"official_name" json:"official_name"`
	ConfirmedCode int       `bson:"confirmed_code" json:"confirmed_code"`
	Skipped       bool      `bson:"skipped" json:"skipped"`
	At            time.Time `bson:"at" json:"at"`
}

// CoordinatesStepResult step 4
type CoordinatesStepResult struct {
	Original       *Coordinates `bson:"original,omitempty" json:"original,omitempty"`
	Official       Coordinates  `bson:"official" json:"official"`
	Confirmed      Coordinates  `bson:"confirmed" json:"confirmed"`
	DistanceMeters *float64     `bson:"distance_meters,omitempty" json:"distance_meters,omitempty"`
	Skipped        bool         `bson:"skipped" json:"skipped"`
	At             time.Time    `bson:"at" json:"at"`
}

// StepData typed results per step, nil until the step resolves
type StepData struct {
	Step1 *AddressStepResult     `bson:"step1,omitempty" json:"step1,omitempty"`
	Step2 *PostalCodeStepResult  `bson:"step2,omitempty" json:"step2,omitempty"`
	Step3 *DistrictStepResult    `bson:"step3,omitempty" json:"step3,omitempty"`
	Step4 *CoordinatesStepResult `bson:"step4,omitempty" json:"step4,omitempty"`
}

// StepValidationProgress persisted workflow state, one per record
type StepValidationProgress struct {
	ID            string                               `bson:"progress_id" json:"id"`
	RecordID      string                               `bson:"_id" json:"record_id"`
	SchemaVersion int                                  `bson:"schema_version" json:"schema_version"`
	Version       int64                                `bson:"version" json:"version"` // Control optimista de concurrencia
	CurrentStep   int                                  `bson:"current_step" json:"current_step"`
	TotalSteps    int                                  `bson:"total_steps" json:"total_steps"`
	Steps         [TotalValidationSteps]ValidationStep `bson:"steps" json:"steps"`
	StepData      StepData                             `bson:"step_data" json:"step_data"`
	IsComplete    bool                                 `bson:"is_complete" json:"is_complete"`
	CompletedAt   *time.Time                           `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CreatedAt     time.Time                            `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time                            `bson:"updated_at" json:"updated_at"`
}

// Step returns a pointer to step n (1..4), nil when out of range
func (p *StepValidationProgress) Step(n int) *ValidationStep {
	if n < StepAddress || n > StepCoordinates {
		return nil
	}
	return &p.Steps[n-1]
}

// NextOpenStep first step after `after` that is not completed or skipped,
// StepDone when every step is resolved.
func (p *StepValidationProgress) NextOpenStep(after int) int {
	for n := after + 1; n <= StepCoordinates; n++ {
		if !p.Steps[n-1].Done() {
			return n
		}
	}
	for n := StepAddress; n <= after && n <= StepCoordinates; n++ {
		if !p.Steps[n-1].Done() {
			return n
		}
	}
	return StepDone
}

// AllDone reports whether all four steps are resolved
func (p *StepValidationProgress) AllDone() bool {
	for _, s := range p.Steps {
		if !s.Done() {
			return false
		}
	}
	return true
}

// Clone deep copy, safe to mutate independently of p
func (p *StepValidationProgress) Clone() *StepValidationProgress {
	if p == nil {
		return nil
	}
	c := *p
	for i := range c.Steps {
		if at := c.Steps[i].CompletedAt; at != nil {
			t := *at
			c.Steps[i].CompletedAt = &t
		}
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		c.CompletedAt = &t
	}
	if s := p.StepData.Step1; s != nil {
		v := *s
		if s.Selected.HouseNumber != nil {
			v.Selected.HouseNumber = IntPtr(*s.Selected.HouseNumber)
		}
		c.StepData.Step1 = &v
	}
	if s := p.StepData.Step2; s != nil {
		v := *s
		c.StepData.Step2 = &v
	}
	if s := p.StepData.Step3; s != nil {
		v := *s
		c.StepData.Step3 = &v
	}
	if s := p.StepData.Step4; s != nil {
		v := *s
		if s.Original != nil {
			o := *s.Original
			v.Original = &o
		}
		if s.DistanceMeters != nil {
			d := *s.DistanceMeters
			v.DistanceMeters = &d
		}
		c.StepData.Step4 = &v
	}
	return &c
}
