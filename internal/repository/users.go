package repository

import (
	"context"
	"time"

	"github.com/sally802528/grade-query-education-system/internal/model"
)

const userColumns = `user_id, password_hash, role, name, class, email, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (model.User, error) {
	var user model.User
	var role string
	err := row.Scan(
		&user.UserID,
		&user.PasswordHash,
		&role,
		&user.Name,
		&user.Class,
		&user.Email,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	user.Role = model.Role(role)
	return user, err
}

func (s *Store) GetUser(ctx context.Context, userID string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, userID)
	user, err := scanUser(row)
	return user, translate(err)
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&count)
	return count, err
}

func (s *Store) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.pool.Exec(ctx, `
    INSERT INTO users (user_id, password_hash, role, name, class, email, created_at, updated_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
  `, user.UserID, user.PasswordHash, string(user.Role), user.Name, user.Class, user.Email, user.CreatedAt, user.UpdatedAt)
	return translate(err)
}

// StudentUpdate holds the optional fields a teacher may change on a student.
type StudentUpdate struct {
	Name         *string
	Class        *string
	Email        *string
	PasswordHash *string
}

func (s *Store) UpdateStudent(ctx context.Context, userID string, update StudentUpdate, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
    UPDATE users
    SET name = COALESCE($2, name),
        class = COALESCE($3, class),
        email = COALESCE($4, email),
        password_hash = COALESCE($5, password_hash),
        updated_at = $6
    WHERE user_id = $1 AND role = 'student'
  `, userID, update.Name, update.Class, update.Email, update.PasswordHash, now)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE user_id = $1`, userID, passwordHash, now)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListStudents(ctx context.Context) ([]model.StudentSummary, error) {
	rows, err := s.pool.Query(ctx, `
    SELECT u.user_id, u.password_hash, u.role, u.name, u.class, u.email, u.created_at, u.updated_at,
           count(a.project_id),
           count(a.project_id) FILTER (WHERE a.status = 'passed'),
           count(a.project_id) FILTER (WHERE a.status = 'submitted')
    FROM users u
    LEFT JOIN project_assignments a ON a.student_id = u.user_id
    WHERE u.role = 'student'
    GROUP BY u.user_id
    ORDER BY u.class NULLS LAST, u.user_id
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.StudentSummary
	for rows.Next() {
		var summary model.StudentSummary
		var role string
		if err := rows.Scan(
			&summary.UserID,
			&summary.PasswordHash,
			&role,
			&summary.Name,
			&summary.Class,
			&summary.Email,
			&summary.CreatedAt,
			&summary.UpdatedAt,
			&summary.ProjectCount,
			&summary.CompletedCount,
			&summary.PendingReview,
		); err != nil {
			return nil, err
		}
		summary.Role = model.Role(role)
		students = append(students, summary)
	}
	return students, rows.Err()
}
