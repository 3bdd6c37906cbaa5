package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sally802528/grade-query-education-system/internal/model"
)

const assignedProjectQuery = `
    SELECT p.id, p.name, p.description, p.deadline, p.required_file, p.teacher_id, p.created_at, a.status, a.score
    FROM project_assignments a
    JOIN projects p ON p.id = a.project_id
  `

func scanAssignedProject(row rowScanner) (model.AssignedProject, error) {
	var project model.AssignedProject
	var status string
	err := row.Scan(
		&project.ID,
		&project.Name,
		&project.Description,
		&project.Deadline,
		&project.RequiredFile,
		&project.TeacherID,
		&project.CreatedAt,
		&status,
		&project.Score,
	)
	project.Status = model.AssignmentStatus(status)
	return project, err
}

func (s *Store) ListAssignedProjects(ctx context.Context, studentID string) ([]model.AssignedProject, error) {
	rows, err := s.pool.Query(ctx, assignedProjectQuery+`WHERE a.student_id = $1 ORDER BY p.deadline, p.name`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []model.AssignedProject
	for rows.Next() {
		project, err := scanAssignedProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func (s *Store) GetAssignedProject(ctx context.Context, projectID, studentID string) (model.AssignedProject, error) {
	row := s.pool.QueryRow(ctx, assignedProjectQuery+`WHERE a.project_id = $1 AND a.student_id = $2`, projectID, studentID)
	project, err := scanAssignedProject(row)
	return project, translate(err)
}

// CreateProject stores the project and assigns it to every student in
// studentIDs. It fails with ErrNotFound, and stores nothing, when any id is
// not a student.
func (s *Store) CreateProject(ctx context.Context, project model.Project, studentIDs []string) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
      INSERT INTO projects (id, name, description, deadline, required_file, teacher_id, created_at)
      VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, project.ID, project.Name, project.Description, project.Deadline, project.RequiredFile, project.TeacherID, project.CreatedAt)
		if err != nil {
			return translate(err)
		}

		tag, err := tx.Exec(ctx, `
      INSERT INTO project_assignments (project_id, student_id, status)
      SELECT $1, u.user_id, 'assigned'
      FROM users u
      WHERE u.user_id = ANY($2) AND u.role = 'student'
    `, project.ID, studentIDs)
		if err != nil {
			return translate(err)
		}
		if int(tag.RowsAffected()) != len(studentIDs) {
			return fmt.Errorf("%w: unknown student in assignment", ErrNotFound)
		}
		return nil
	})
}

func (s *Store) GradeReport(ctx context.Context) ([]model.GradeRow, error) {
	rows, err := s.pool.Query(ctx, `
    SELECT u.user_id, u.name, u.class, p.name, p.deadline, a.status, a.score
    FROM project_assignments a
    JOIN users u ON u.user_id = a.student_id
    JOIN projects p ON p.id = a.project_id
    ORDER BY u.class NULLS LAST, u.user_id, p.deadline
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var report []model.GradeRow
	for rows.Next() {
		var row model.GradeRow
		var status string
		if err := rows.Scan(&row.StudentID, &row.StudentName, &row.Class, &row.ProjectName, &row.Deadline, &status, &row.Score); err != nil {
			return nil, err
		}
		row.Status = model.AssignmentStatus(status)
		report = append(report, row)
	}
	return report, rows.Err()
}
