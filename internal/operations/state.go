package operations

import (
	"sync"
	"time"

	"skuforecast/internal/dataprocessing"
	"skuforecast/internal/features"
	"skuforecast/internal/model"
	"skuforecast/pkg/contracts/domain"
)

// RunStatus represents the overall run status
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunState carries one run's status and the data passed between steps.
// Each field is written by exactly one step and read by the ones after it.
type RunState struct {
	mu sync.RWMutex

	ID        string     `json:"id"`
	Status    RunStatus  `json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Error     error      `json:"-"`

	Steps map[string]*StepState `json:"steps"`
	Order []string              `json:"order"`

	Request RunRequest `json:"request"`

	// load
	Series    dataprocessing.Series       `json:"-"`
	Summaries []dataprocessing.SKUSummary `json:"-"`
	Horizon   domain.ForecastHorizon      `json:"-"`

	// features
	Builder  *features.Builder `json:"-"`
	Training *features.Dataset `json:"-"`

	// fit
	Model model.Regressor `json:"-"`

	// predict
	Results []domain.ForecastResult `json:"-"`
}

// NewRunState creates a new run state for req
func NewRunState(id string, req RunRequest) *RunState {
	return &RunState{
		ID:        id,
		Status:    RunStatusPending,
		StartTime: time.Now(),
		Steps:     make(map[string]*StepState),
		Request:   req,
	}
}

// Start marks the run as running
func (p *RunState) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Status = RunStatusRunning
	p.StartTime = time.Now()
}

// Complete marks the run as completed
func (p *RunState) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = RunStatusCompleted
}

// Fail marks the run as failed
func (p *RunState) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = RunStatusFailed
	p.Error = err
}

// Cancel marks the run as cancelled
func (p *RunState) Cancel(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = RunStatusCancelled
	p.Error = err
}

// GetStage returns the state of a specific Step
func (p *RunState) GetStage(stageID string) *StepState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Steps[stageID]
}

// SetStage registers the state of a Step, keeping execution order
func (p *RunState) SetStage(stageID string, state *StepState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.Steps[stageID]; !exists {
		p.Order = append(p.Order, stageID)
	}
	p.Steps[stageID] = state
}

// Duration returns the duration of the run
func (p *RunState) Duration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.EndTime != nil {
		return p.EndTime.Sub(p.StartTime)
	}
	return time.Since(p.StartTime)
}

// GetFailedStages returns all failed steps in execution order
func (p *RunState) GetFailedStages() []*StepState {
	return p.stagesWithStatus(StepStatusFailed)
}

// GetCompletedStages returns all completed steps in execution order
func (p *RunState) GetCompletedStages() []*StepState {
	return p.stagesWithStatus(StepStatusCompleted)
}

func (p *RunState) stagesWithStatus(status StepStatus) []*StepState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var matched []*StepState
	for _, id := range p.Order {
		if s := p.Steps[id]; s != nil && s.GetStatus() == status {
			matched = append(matched, s)
		}
	}
	return matched
}

// IsComplete returns true if no step is pending or active
func (p *RunState) IsComplete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.Steps {
		status := s.GetStatus()
		if status == StepStatusPending || status == StepStatusActive {
			return false
		}
	}
	return true
}
