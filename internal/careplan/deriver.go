// Package careplan turns an extraction result into typed steps and maps steps
// onto reminder instants. Everything here is pure; persistence lives in the
// service layer.
package careplan

import "carenote-server/internal/domain"

// DeriveSteps produces one checklist step per checklist entry followed by one
// plan step per plan entry. Ordinals restart at zero for each type group and
// descriptions are kept verbatim.
func DeriveSteps(note *domain.Note, result domain.ExtractionResult) []*domain.ActionableStep {
	steps := make([]*domain.ActionableStep, 0, len(result.Checklist)+len(result.Plan))
	steps = appendGroup(steps, note.ID, domain.StepTypeChecklist, result.Checklist)
	steps = appendGroup(steps, note.ID, domain.StepTypePlan, result.Plan)
	return steps
}

func appendGroup(steps []*domain.ActionableStep, noteID int64, stepType domain.StepType, descriptions []string) []*domain.ActionableStep {
	for i, desc := range descriptions {
		steps = append(steps, &domain.ActionableStep{
			NoteID:      noteID,
			Type:        stepType,
			Description: desc,
			Ordinal:     i,
		})
	}
	return steps
}
