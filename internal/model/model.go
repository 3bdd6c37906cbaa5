package model

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher
}

type User struct {
	UserID       string
	PasswordHash string
	Role         Role
	Name         string
	Class        *string
	Email        *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StudentSummary is a roster row with per-student progress counters.
type StudentSummary struct {
	User
	ProjectCount   int
	CompletedCount int
	PendingReview  int
}

type Project struct {
	ID           string
	Name         string
	Description  string
	Deadline     time.Time
	RequiredFile bool
	TeacherID    string
	CreatedAt    time.Time
}

type AssignmentStatus string

const (
	AssignmentAssigned  AssignmentStatus = "assigned"
	AssignmentSubmitted AssignmentStatus = "submitted"
	AssignmentPassed    AssignmentStatus = "passed"
	AssignmentRejected  AssignmentStatus = "rejected"
)

// AssignedProject is a project as seen by one student.
type AssignedProject struct {
	Project
	Status AssignmentStatus
	Score  *int
}

type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionPassed   SubmissionStatus = "passed"
	SubmissionRejected SubmissionStatus = "rejected"
)

type Submission struct {
	ID          string
	ProjectID   string
	StudentID   string
	FileKey     *string
	FileName    *string
	ContentType *string
	Note        *string
	Status      SubmissionStatus
	Score       *int
	Feedback    *string
	SubmittedAt time.Time
	ReviewedAt  *time.Time
	ReviewedBy  *string
}

// PendingSubmission joins a submission with the names a reviewer needs.
type PendingSubmission struct {
	Submission
	ProjectName string
	StudentName string
}

type Message struct {
	ID          string
	SenderID    string
	RecipientID *string
	ProjectID   *string
	Body        string
	Hidden      bool
	HiddenBy    *string
	CreatedAt   time.Time
}

// GradeRow is one line of the teacher export.
type GradeRow struct {
	StudentID   string
	StudentName string
	Class       *string
	ProjectName string
	Deadline    time.Time
	Status      AssignmentStatus
	Score       *int
}
