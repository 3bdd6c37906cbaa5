package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sally802528/grade-query-education-system/internal/db"
	"github.com/sally802528/grade-query-education-system/internal/model"
)

func TestSubmissionLifecycle(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	ctx := context.Background()
	store := NewStore(pool)
	suffix := uuid.NewString()[:8]
	teacherID := "T-" + suffix
	studentID := "S-" + suffix
	now := time.Now().UTC().Truncate(time.Microsecond)

	for _, user := range []model.User{
		{UserID: teacherID, PasswordHash: "x", Role: model.RoleTeacher, Name: "Teacher", CreatedAt: now, UpdatedAt: now},
		{UserID: studentID, PasswordHash: "x", Role: model.RoleStudent, Name: "Student", CreatedAt: now, UpdatedAt: now},
	} {
		if err := store.CreateUser(ctx, user); err != nil {
			t.Fatalf("create user error: %v", err)
		}
	}
	if err := store.CreateUser(ctx, model.User{UserID: studentID, PasswordHash: "x", Role: model.RoleStudent, Name: "Dup", CreatedAt: now, UpdatedAt: now}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	name := "Renamed"
	if err := store.UpdateStudent(ctx, studentID, StudentUpdate{Name: &name}, now); err != nil {
		t.Fatalf("update student error: %v", err)
	}
	if err := store.UpdateStudent(ctx, teacherID, StudentUpdate{Name: &name}, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for teacher, got %v", err)
	}

	project := model.Project{
		ID:           uuid.NewString(),
		Name:         "Final project",
		Deadline:     time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		RequiredFile: true,
		TeacherID:    teacherID,
		CreatedAt:    now,
	}
	if err := store.CreateProject(ctx, model.Project{ID: uuid.NewString(), Name: "x", Deadline: now, TeacherID: teacherID, CreatedAt: now}, []string{"missing-" + suffix}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown student, got %v", err)
	}
	if err := store.CreateProject(ctx, project, []string{studentID}); err != nil {
		t.Fatalf("create project error: %v", err)
	}

	assigned, err := store.GetAssignedProject(ctx, project.ID, studentID)
	if err != nil {
		t.Fatalf("get assigned error: %v", err)
	}
	if assigned.Status != model.AssignmentAssigned {
		t.Fatalf("expected assigned, got %s", assigned.Status)
	}

	key := "submissions/" + project.ID + "/" + studentID + "/file.pdf"
	sub := model.Submission{
		ID:          uuid.NewString(),
		ProjectID:   project.ID,
		StudentID:   studentID,
		FileKey:     &key,
		Status:      model.SubmissionPending,
		SubmittedAt: now,
	}
	if err := store.CreateSubmission(ctx, sub); err != nil {
		t.Fatalf("create submission error: %v", err)
	}

	score := 88
	review := Review{SubmissionID: sub.ID, Status: model.SubmissionPassed, Score: &score, ReviewerID: teacherID, ReviewedAt: now}
	if err := store.ReviewSubmission(ctx, review); err != nil {
		t.Fatalf("review error: %v", err)
	}
	if err := store.ReviewSubmission(ctx, review); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on second review, got %v", err)
	}
	if err := store.ReviewSubmission(ctx, Review{SubmissionID: uuid.NewString(), Status: model.SubmissionRejected, ReviewerID: teacherID, ReviewedAt: now}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	assigned, err = store.GetAssignedProject(ctx, project.ID, studentID)
	if err != nil {
		t.Fatalf("get assigned error: %v", err)
	}
	if assigned.Status != model.AssignmentPassed || assigned.Score == nil || *assigned.Score != score {
		t.Fatalf("unexpected assignment after review: %+v", assigned)
	}

	sub.ID = uuid.NewString()
	if err := store.CreateSubmission(ctx, sub); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict resubmitting passed project, got %v", err)
	}
}

func TestPassedAssignmentSurvivesLaterReview(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	ctx := context.Background()
	store := NewStore(pool)
	suffix := uuid.NewString()[:8]
	teacherID := "T-" + suffix
	studentID := "S-" + suffix
	now := time.Now().UTC().Truncate(time.Microsecond)

	for _, user := range []model.User{
		{UserID: teacherID, PasswordHash: "x", Role: model.RoleTeacher, Name: "Teacher", CreatedAt: now, UpdatedAt: now},
		{UserID: studentID, PasswordHash: "x", Role: model.RoleStudent, Name: "Student", CreatedAt: now, UpdatedAt: now},
	} {
		if err := store.CreateUser(ctx, user); err != nil {
			t.Fatalf("create user error: %v", err)
		}
	}
	project := model.Project{ID: uuid.NewString(), Name: "Midterm", Deadline: now, TeacherID: teacherID, CreatedAt: now}
	if err := store.CreateProject(ctx, project, []string{studentID}); err != nil {
		t.Fatalf("create project error: %v", err)
	}

	note := "first"
	first := model.Submission{ID: uuid.NewString(), ProjectID: project.ID, StudentID: studentID, Note: &note, Status: model.SubmissionPending, SubmittedAt: now}
	if err := store.CreateSubmission(ctx, first); err != nil {
		t.Fatalf("create submission error: %v", err)
	}
	second := first
	second.ID = uuid.NewString()
	if err := store.CreateSubmission(ctx, second); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict while review is pending, got %v", err)
	}

	score := 95
	if err := store.ReviewSubmission(ctx, Review{SubmissionID: first.ID, Status: model.SubmissionPassed, Score: &score, ReviewerID: teacherID, ReviewedAt: now}); err != nil {
		t.Fatalf("review error: %v", err)
	}

	// Rows written before the pending check existed can still be reviewed.
	if _, err := pool.Exec(ctx,
		`INSERT INTO submissions (id, project_id, student_id, note, status, submitted_at) VALUES ($1, $2, $3, $4, 'pending', $5)`,
		second.ID, project.ID, studentID, note, now); err != nil {
		t.Fatalf("insert stale submission error: %v", err)
	}
	if err := store.ReviewSubmission(ctx, Review{SubmissionID: second.ID, Status: model.SubmissionRejected, ReviewerID: teacherID, ReviewedAt: now}); err != nil {
		t.Fatalf("review stale submission error: %v", err)
	}

	assigned, err := store.GetAssignedProject(ctx, project.ID, studentID)
	if err != nil {
		t.Fatalf("get assigned error: %v", err)
	}
	if assigned.Status != model.AssignmentPassed || assigned.Score == nil || *assigned.Score != score {
		t.Fatalf("expected passed assignment to keep its score, got %+v", assigned)
	}
}

func TestMessagesHiddenFromParticipants(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	ctx := context.Background()
	store := NewStore(pool)
	suffix := uuid.NewString()[:8]
	teacherID := "T-" + suffix
	studentID := "S-" + suffix
	now := time.Now().UTC()

	for _, user := range []model.User{
		{UserID: teacherID, PasswordHash: "x", Role: model.RoleTeacher, Name: "Teacher", CreatedAt: now, UpdatedAt: now},
		{UserID: studentID, PasswordHash: "x", Role: model.RoleStudent, Name: "Student", CreatedAt: now, UpdatedAt: now},
	} {
		if err := store.CreateUser(ctx, user); err != nil {
			t.Fatalf("create user error: %v", err)
		}
	}

	msg := model.Message{ID: uuid.NewString(), SenderID: studentID, RecipientID: &teacherID, Body: "hello", CreatedAt: now}
	if err := store.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("create message error: %v", err)
	}
	visible, err := store.ListMessagesFor(ctx, studentID)
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(visible) != 1 {
		t.Fatalf("expected 1 message, got %d", len(visible))
	}

	if err := store.HideMessage(ctx, msg.ID, teacherID); err != nil {
		t.Fatalf("hide error: %v", err)
	}
	if err := store.HideMessage(ctx, uuid.NewString(), teacherID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	visible, err = store.ListMessagesFor(ctx, studentID)
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("expected hidden message to disappear, got %d", len(visible))
	}
}

func openTestDB(t *testing.T) *pgxpool.Pool {
	url := os.Getenv("CLASSROOM_TEST_DB")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		t.Skip("CLASSROOM_TEST_DB or DATABASE_URL not set")
		return nil
	}
	pool, err := db.NewPool(context.Background(), url)
	if err != nil {
		t.Skipf("db unavailable: %v", err)
		return nil
	}
	if err := db.EnsureSchema(context.Background(), pool); err != nil {
		pool.Close()
		t.Fatalf("schema error: %v", err)
	}
	return pool
}
