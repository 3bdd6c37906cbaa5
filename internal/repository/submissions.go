package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sally802528/grade-query-education-system/internal/model"
)

const submissionColumns = `s.id, s.project_id, s.student_id, s.file_key, s.file_name, s.content_type, s.note, s.status, s.score, s.feedback, s.submitted_at, s.reviewed_at, s.reviewed_by`

func submissionDest(sub *model.Submission, status *string) []interface{} {
	return []interface{}{
		&sub.ID,
		&sub.ProjectID,
		&sub.StudentID,
		&sub.FileKey,
		&sub.FileName,
		&sub.ContentType,
		&sub.Note,
		status,
		&sub.Score,
		&sub.Feedback,
		&sub.SubmittedAt,
		&sub.ReviewedAt,
		&sub.ReviewedBy,
	}
}

// CreateSubmission records the submission and moves the assignment to
// "submitted". It yields ErrConflict while a submission awaits review or
// once the assignment has passed, so an assignment has at most one pending
// submission.
func (s *Store) CreateSubmission(ctx context.Context, sub model.Submission) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `
      SELECT status FROM project_assignments
      WHERE project_id = $1 AND student_id = $2
      FOR UPDATE
    `, sub.ProjectID, sub.StudentID).Scan(&status)
		if err != nil {
			return translate(err)
		}
		switch model.AssignmentStatus(status) {
		case model.AssignmentPassed, model.AssignmentSubmitted:
			return ErrConflict
		}

		_, err = tx.Exec(ctx, `
      INSERT INTO submissions (id, project_id, student_id, file_key, file_name, content_type, note, status, submitted_at)
      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, sub.ID, sub.ProjectID, sub.StudentID, sub.FileKey, sub.FileName, sub.ContentType, sub.Note, string(model.SubmissionPending), sub.SubmittedAt)
		if err != nil {
			return translate(err)
		}

		_, err = tx.Exec(ctx, `
      UPDATE project_assignments SET status = $3
      WHERE project_id = $1 AND student_id = $2
    `, sub.ProjectID, sub.StudentID, string(model.AssignmentSubmitted))
		return translate(err)
	})
}

func (s *Store) GetSubmission(ctx context.Context, submissionID string) (model.Submission, error) {
	var sub model.Submission
	var status string
	err := s.pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions s WHERE s.id = $1`, submissionID).
		Scan(submissionDest(&sub, &status)...)
	sub.Status = model.SubmissionStatus(status)
	return sub, translate(err)
}

func (s *Store) ListPendingSubmissions(ctx context.Context) ([]model.PendingSubmission, error) {
	rows, err := s.pool.Query(ctx, `
    SELECT `+submissionColumns+`, p.name, u.name
    FROM submissions s
    JOIN projects p ON p.id = s.project_id
    JOIN users u ON u.user_id = s.student_id
    WHERE s.status = 'pending'
    ORDER BY s.submitted_at
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []model.PendingSubmission
	for rows.Next() {
		var item model.PendingSubmission
		var status string
		dest := append(submissionDest(&item.Submission, &status), &item.ProjectName, &item.StudentName)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		item.Status = model.SubmissionStatus(status)
		pending = append(pending, item)
	}
	return pending, rows.Err()
}

type Review struct {
	SubmissionID string
	Status       model.SubmissionStatus
	Score        *int
	Feedback     *string
	ReviewerID   string
	ReviewedAt   time.Time
}

// ReviewSubmission closes a pending submission and mirrors the verdict onto
// the assignment unless the assignment has already passed. Reviewing twice
// yields ErrConflict.
func (s *Store) ReviewSubmission(ctx context.Context, review Review) error {
	assignmentStatus := model.AssignmentRejected
	if review.Status == model.SubmissionPassed {
		assignmentStatus = model.AssignmentPassed
	}

	return s.withTx(ctx, func(tx pgx.Tx) error {
		var projectID, studentID string
		err := tx.QueryRow(ctx, `
      UPDATE submissions
      SET status = $2, score = $3, feedback = $4, reviewed_by = $5, reviewed_at = $6
      WHERE id = $1 AND status = 'pending'
      RETURNING project_id, student_id
    `, review.SubmissionID, string(review.Status), review.Score, review.Feedback, review.ReviewerID, review.ReviewedAt).Scan(&projectID, &studentID)
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM submissions WHERE id = $1)`, review.SubmissionID).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return ErrConflict
			}
			return ErrNotFound
		}
		if err != nil {
			return translate(err)
		}

		_, err = tx.Exec(ctx, `
      UPDATE project_assignments SET status = $3, score = $4
      WHERE project_id = $1 AND student_id = $2 AND status <> 'passed'
    `, projectID, studentID, string(assignmentStatus), review.Score)
		return translate(err)
	})
}
