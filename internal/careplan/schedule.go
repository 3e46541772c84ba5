package careplan

import (
	"time"

	"carenote-server/internal/domain"
)

// ChecklistDelay is how long after submission a checklist nudge fires.
const ChecklistDelay = 10 * time.Second

// ScheduleTimes returns the reminder instants for a step submitted at now.
// Checklist steps get a single nudge at now+10s. Plan steps get a single
// reminder ordinal days after now, so plan steps roll out one per day.
func ScheduleTimes(step *domain.ActionableStep, now time.Time) []time.Time {
	switch step.Type {
	case domain.StepTypeChecklist:
		return []time.Time{now.Add(ChecklistDelay)}
	case domain.StepTypePlan:
		return []time.Time{now.AddDate(0, 0, step.Ordinal)}
	}
	return nil
}

// PlanReminders maps every step onto its reminders, preserving step order.
// Steps must already carry their persisted IDs.
func PlanReminders(steps []*domain.ActionableStep, now time.Time) []*domain.Reminder {
	reminders := make([]*domain.Reminder, 0, len(steps))
	for _, step := range steps {
		for _, at := range ScheduleTimes(step, now) {
			reminders = append(reminders, &domain.Reminder{
				StepID:       step.ID,
				ScheduleTime: at,
				Completed:    false,
			})
		}
	}
	return reminders
}
