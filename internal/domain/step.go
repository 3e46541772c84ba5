package domain

import (
	"fmt"
	"time"
)

type StepType string

const (
	StepTypeChecklist StepType = "checklist"
	StepTypePlan      StepType = "plan"
)

func ParseStepType(s string) (StepType, error) {
	switch StepType(s) {
	case StepTypeChecklist:
		return StepTypeChecklist, nil
	case StepTypePlan:
		return StepTypePlan, nil
	}
	return "", fmt.Errorf("unknown step type %q", s)
}

// ActionableStep is one task extracted from a note. Ordinal is the zero-based
// position within its own type group.
type ActionableStep struct {
	ID          int64     `json:"id"`
	NoteID      int64     `json:"note_id"`
	Type        StepType  `json:"type"`
	Description string    `json:"description"`
	Ordinal     int       `json:"ordinal"`
	CreatedAt   time.Time `json:"created_at"`
}
