package tender

import (
	"errors"
	"strings"

	"github.com/mercadoforte/backend-caixa/internal/common"
)

// Stage is the position of a sale in the tender flow.
type Stage string

const (
	StageClientEntry     Stage = "client_entry"
	StageMethodSelection Stage = "method_selection"
	StageAmountEntry     Stage = "amount_entry"
	StageCommitted       Stage = "committed"
)

var (
	// ErrClientRequired guards leaving client entry.
	ErrClientRequired = errors.New("tender: client name is required")
	// ErrMethodRequired guards leaving method selection.
	ErrMethodRequired = errors.New("tender: payment method is required")
	// ErrWrongStage is returned when an action does not apply to the current stage.
	ErrWrongStage = errors.New("tender: action not allowed in current stage")
)

// Machine tracks the explicit tender stage and the data each stage collects.
// The zero value starts at client entry.
type Machine struct {
	Stage       Stage  `json:"stage"`
	ClientName  string `json:"clientName,omitempty"`
	ClientPhone string `json:"clientPhone,omitempty"`
	Method      Method `json:"method,omitempty"`
}

// Current returns the stage, defaulting to client entry.
func (m *Machine) Current() Stage {
	if m.Stage == "" {
		return StageClientEntry
	}
	return m.Stage
}

// SetClient records the client while in client entry.
func (m *Machine) SetClient(name, phone string) error {
	if m.Current() != StageClientEntry {
		return wrongStage(m.Current(), "set client")
	}
	m.ClientName = strings.TrimSpace(name)
	m.ClientPhone = strings.TrimSpace(phone)
	return nil
}

// SelectMethod records the method while in method selection.
func (m *Machine) SelectMethod(method Method) error {
	if m.Current() != StageMethodSelection {
		return wrongStage(m.Current(), "select method")
	}
	m.Method = method
	return nil
}

// Advance moves one stage forward once the current stage's exit guard holds.
// Leaving amount entry is done by MarkCommitted after the submission guard.
func (m *Machine) Advance() error {
	switch m.Current() {
	case StageClientEntry:
		if strings.TrimSpace(m.ClientName) == "" {
			return common.ValidationWrap(ErrClientRequired, "client name is required", nil)
		}
		m.Stage = StageMethodSelection
	case StageMethodSelection:
		if m.Method == "" {
			return common.ValidationWrap(ErrMethodRequired, "select a payment method", nil)
		}
		m.Stage = StageAmountEntry
	default:
		return wrongStage(m.Current(), "advance")
	}
	return nil
}

// Back returns to the previous stage. It is a no-op at client entry.
func (m *Machine) Back() error {
	switch m.Current() {
	case StageClientEntry:
	case StageMethodSelection:
		m.Stage = StageClientEntry
	case StageAmountEntry:
		m.Stage = StageMethodSelection
	default:
		return wrongStage(m.Current(), "go back")
	}
	return nil
}

// CanCommit reports whether the sale is waiting for commit.
func (m *Machine) CanCommit() error {
	if m.Current() != StageAmountEntry {
		return wrongStage(m.Current(), "commit")
	}
	return nil
}

// MarkCommitted records a successful commit.
func (m *Machine) MarkCommitted() error {
	if err := m.CanCommit(); err != nil {
		return err
	}
	m.Stage = StageCommitted
	return nil
}

// Reset returns to client entry and forgets all collected data.
func (m *Machine) Reset() {
	*m = Machine{Stage: StageClientEntry}
}

func wrongStage(stage Stage, action string) error {
	return common.ValidationWrap(ErrWrongStage, "cannot "+action+" while in "+string(stage), map[string]any{"stage": stage})
}
