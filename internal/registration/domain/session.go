package registration

import (
	"time"
)

// Flow selects which step sequence a session walks through.
type Flow string

const (
	// FlowWizard is the full registration wizard.
	FlowWizard Flow = "wizard"
	// FlowDirect is the shorter direct-registration variant.
	FlowDirect Flow = "direct"
)

// Wizard flow steps, in order.
const (
	StepProfile            = 1
	StepSystemRegistration = 2
	StepSmartPriceControl  = 3
	StepCompletion         = 4
)

// Direct flow steps, in order.
const (
	StepRegister     = 1
	StepInstallation = 2
)

// Session journey status.
const (
	JourneyInProgress = "in_progress"
	JourneyCompleted  = "completed"
)

var wizardStepNames = []string{"Profile", "SystemRegistration", "SmartPriceControl", "Completion"}
var directStepNames = []string{"Register", "Installation"}

// Valid reports whether the flow is supported.
func (f Flow) Valid() bool {
	return f == FlowWizard || f == FlowDirect
}

// StepNames lists the flow's steps in order.
func (f Flow) StepNames() []string {
	if f == FlowDirect {
		return directStepNames
	}
	return wizardStepNames
}

// MaxStep returns the index of the flow's last step.
func (f Flow) MaxStep() int {
	return len(f.StepNames())
}

// StepName resolves a 1-based step index to its name.
func (f Flow) StepName(step int) string {
	names := f.StepNames()
	if step < 1 || step > len(names) {
		return ""
	}
	return names[step-1]
}

// CustomerProfile is the customer record saved upstream at the end of the
// profile step.
type CustomerProfile struct {
	CustomerID  string `json:"customerId,omitempty"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	CountryCode string `json:"countryCode"`
	CompanyName string `json:"companyName"`
	Address     string `json:"address"`
	PostalCode  string `json:"postalCode"`
	City        string `json:"city"`
	Country     string `json:"country"`
}

// Session is one in-progress registration journey: the draft, the owning
// user's profile data, and the wizard position.
type Session struct {
	ID           string          `json:"id"`
	UserID       string          `json:"userId"`
	Flow         Flow            `json:"flow"`
	Step         int             `json:"step"`
	Status       string          `json:"status"`
	Profile      CustomerProfile `json:"profile"`
	Draft        FacilityDraft   `json:"draft"`
	Submitting   bool            `json:"submitting"`
	SubmittingAt time.Time       `json:"submittingAt,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// NewSession starts a journey at step 1.
func NewSession(id, userID string, flow Flow, now time.Time) (*Session, error) {
	if id == "" {
		return nil, ErrNilSession
	}
	if !flow.Valid() {
		flow = FlowWizard
	}
	return &Session{
		ID:        id,
		UserID:    userID,
		Flow:      flow,
		Step:      1,
		Status:    JourneyInProgress,
		Draft:     NewFacilityDraft(now),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// Advance moves to the next step, marking the journey completed on
// reaching the terminal step.
func (s *Session) Advance() {
	if s.Step < s.Flow.MaxStep() {
		s.Step++
	}
	if s.Step == s.Flow.MaxStep() {
		s.Status = JourneyCompleted
	}
}

// Back moves one step back, floored at step 1. Going back never
// revalidates.
func (s *Session) Back() {
	if s.Step > 1 {
		s.Step--
	}
}

// GoTo jumps directly to a step, used when resuming a saved draft.
func (s *Session) GoTo(step int) error {
	if step < 1 || step > s.Flow.MaxStep() {
		return ErrInvalidStep
	}
	s.Step = step
	return nil
}

// Clone returns a detached copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	copied := *s
	copied.Draft = s.Draft.Clone()
	return &copied
}
