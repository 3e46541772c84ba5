package repository

import (
	"context"
	"database/sql"
	"fmt"

	"carenote-server/internal/domain"
)

type CareTeamRepository interface {
	Assign(ctx context.Context, link *domain.DoctorPatient) error
	Exists(ctx context.Context, doctorID, patientID string) (bool, error)
	ListByDoctor(ctx context.Context, doctorID string, limit, offset int) ([]*domain.DoctorPatient, int, error)
}

const (
	insertCareTeamSQL = `
INSERT INTO doctor_patient (doctor_id, patient_id)
VALUES ($1, $2)
RETURNING id, assigned_at`

	existsCareTeamSQL = `
SELECT EXISTS (
	SELECT 1 FROM doctor_patient WHERE doctor_id = $1 AND patient_id = $2
)`

	countCareTeamSQL = `
SELECT COUNT(*) FROM doctor_patient WHERE doctor_id = $1`

	listCareTeamSQL = `
SELECT id, doctor_id, patient_id, assigned_at
FROM doctor_patient
WHERE doctor_id = $1
ORDER BY assigned_at DESC, id DESC
LIMIT $2 OFFSET $3`
)

type careTeamRepository struct {
	db *sql.DB
}

func NewCareTeamRepository(db *sql.DB) CareTeamRepository {
	return &careTeamRepository{db: db}
}

func (r *careTeamRepository) Assign(ctx context.Context, link *domain.DoctorPatient) error {
	err := conn(ctx, r.db).QueryRowContext(ctx, insertCareTeamSQL, link.DoctorID, link.PatientID).
		Scan(&link.ID, &link.AssignedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to assign doctor: %w", err)
	}
	return nil
}

func (r *careTeamRepository) Exists(ctx context.Context, doctorID, patientID string) (bool, error) {
	var exists bool
	if err := conn(ctx, r.db).QueryRowContext(ctx, existsCareTeamSQL, doctorID, patientID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check care team: %w", err)
	}
	return exists, nil
}

func (r *careTeamRepository) ListByDoctor(ctx context.Context, doctorID string, limit, offset int) ([]*domain.DoctorPatient, int, error) {
	q := conn(ctx, r.db)

	var total int
	if err := q.QueryRowContext(ctx, countCareTeamSQL, doctorID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count patients: %w", err)
	}

	rows, err := q.QueryContext(ctx, listCareTeamSQL, doctorID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list patients: %w", err)
	}
	defer rows.Close()

	links := []*domain.DoctorPatient{}
	for rows.Next() {
		var link domain.DoctorPatient
		if err := rows.Scan(&link.ID, &link.DoctorID, &link.PatientID, &link.AssignedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan care team link: %w", err)
		}
		links = append(links, &link)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate care team: %w", err)
	}
	return links, total, nil
}
