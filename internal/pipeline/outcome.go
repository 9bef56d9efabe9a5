package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/ruralpay/payauth/internal/cop"
	"github.com/ruralpay/payauth/internal/models"
	"github.com/ruralpay/payauth/internal/rails"
)

type Status string

const (
	StatusAllowed          Status = "allowed"
	StatusBlocked          Status = "blocked"
	StatusRequiresStepUp   Status = "requires_step_up"
	StatusValidationFailed Status = "validation_failed"
)

// Outcome is the terminal result of one authorization run. The set of
// implementations is closed: Allowed, Blocked, RequiresStepUp, ValidationFailed.
type Outcome interface {
	Status() Status
	sealed()
}

type Allowed struct {
	TransactionID string          `json:"transactionId"`
	Rail          rails.Selection `json:"rail"`
	CoP           *cop.Result     `json:"cop,omitempty"`
	PayeeID       string          `json:"payeeId,omitempty"`
	ScheduleID    string          `json:"scheduleId,omitempty"`
	Warnings      []string        `json:"warnings,omitempty"`
}

type Blocked struct {
	Reason string       `json:"reason"`
	Stage  models.Stage `json:"stage"`
}

// RequiresStepUp asks the caller to complete a challenge and resubmit the same intent.
type RequiresStepUp struct {
	Category  string `json:"category"`
	Threshold int64  `json:"threshold"`
	Reason    string `json:"reason"`
}

type ValidationFailed struct {
	Reason string       `json:"reason"`
	Stage  models.Stage `json:"stage"`
}

func (Allowed) Status() Status          { return StatusAllowed }
func (Blocked) Status() Status          { return StatusBlocked }
func (RequiresStepUp) Status() Status   { return StatusRequiresStepUp }
func (ValidationFailed) Status() Status { return StatusValidationFailed }

func (Allowed) sealed()          {}
func (Blocked) sealed()          {}
func (RequiresStepUp) sealed()   {}
func (ValidationFailed) sealed() {}

type envelope struct {
	Status  Status          `json:"status"`
	Outcome json.RawMessage `json:"outcome"`
}

// MarshalOutcome encodes an outcome with its variant tag.
func MarshalOutcome(o Outcome) ([]byte, error) {
	body, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Status: o.Status(), Outcome: body})
}

func UnmarshalOutcome(data []byte) (Outcome, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	var o Outcome
	var err error
	switch env.Status {
	case StatusAllowed:
		var v Allowed
		err = json.Unmarshal(env.Outcome, &v)
		o = v
	case StatusBlocked:
		var v Blocked
		err = json.Unmarshal(env.Outcome, &v)
		o = v
	case StatusRequiresStepUp:
		var v RequiresStepUp
		err = json.Unmarshal(env.Outcome, &v)
		o = v
	case StatusValidationFailed:
		var v ValidationFailed
		err = json.Unmarshal(env.Outcome, &v)
		o = v
	default:
		return nil, fmt.Errorf("unknown outcome status %q", env.Status)
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}
