package http

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sally802528/grade-query-education-system/internal/model"
	"github.com/sally802528/grade-query-education-system/internal/repository"
)

type fakeStore struct {
	mu          sync.Mutex
	users       map[string]model.User
	projects    map[string]model.Project
	assignments map[string]map[string]*model.AssignedProject
	submissions map[string]model.Submission
	messages    []model.Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       map[string]model.User{},
		projects:    map[string]model.Project{},
		assignments: map[string]map[string]*model.AssignedProject{},
		submissions: map[string]model.Submission{},
	}
}

func (f *fakeStore) GetUser(_ context.Context, userID string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (f *fakeStore) CreateUser(_ context.Context, user model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.UserID]; ok {
		return repository.ErrConflict
	}
	f.users[user.UserID] = user
	return nil
}

func (f *fakeStore) UpdateStudent(_ context.Context, userID string, update repository.StudentUpdate, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok || user.Role != model.RoleStudent {
		return repository.ErrNotFound
	}
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Class != nil {
		user.Class = update.Class
	}
	if update.Email != nil {
		user.Email = update.Email
	}
	if update.PasswordHash != nil {
		user.PasswordHash = *update.PasswordHash
	}
	user.UpdatedAt = now
	f.users[userID] = user
	return nil
}

func (f *fakeStore) UpdatePassword(_ context.Context, userID, passwordHash string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = now
	f.users[userID] = user
	return nil
}

func (f *fakeStore) ListStudents(_ context.Context) ([]model.StudentSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.StudentSummary
	for _, user := range f.users {
		if user.Role != model.RoleStudent {
			continue
		}
		summary := model.StudentSummary{User: user}
		for _, byStudent := range f.assignments {
			assigned, ok := byStudent[user.UserID]
			if !ok {
				continue
			}
			summary.ProjectCount++
			switch assigned.Status {
			case model.AssignmentPassed:
				summary.CompletedCount++
			case model.AssignmentSubmitted:
				summary.PendingReview++
			}
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f *fakeStore) ListAssignedProjects(_ context.Context, studentID string) ([]model.AssignedProject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AssignedProject
	for _, byStudent := range f.assignments {
		if assigned, ok := byStudent[studentID]; ok {
			out = append(out, *assigned)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out, nil
}

func (f *fakeStore) GetAssignedProject(_ context.Context, projectID, studentID string) (model.AssignedProject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	assigned, ok := f.assignments[projectID][studentID]
	if !ok {
		return model.AssignedProject{}, repository.ErrNotFound
	}
	return *assigned, nil
}

func (f *fakeStore) CreateProject(_ context.Context, project model.Project, studentIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range studentIDs {
		if user, ok := f.users[id]; !ok || user.Role != model.RoleStudent {
			return repository.ErrNotFound
		}
	}
	f.projects[project.ID] = project
	byStudent := map[string]*model.AssignedProject{}
	for _, id := range studentIDs {
		byStudent[id] = &model.AssignedProject{Project: project, Status: model.AssignmentAssigned}
	}
	f.assignments[project.ID] = byStudent
	return nil
}

func (f *fakeStore) GradeReport(_ context.Context) ([]model.GradeRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []model.GradeRow
	for _, byStudent := range f.assignments {
		for studentID, assigned := range byStudent {
			user := f.users[studentID]
			rows = append(rows, model.GradeRow{
				StudentID:   studentID,
				StudentName: user.Name,
				Class:       user.Class,
				ProjectName: assigned.Name,
				Deadline:    assigned.Deadline,
				Status:      assigned.Status,
				Score:       assigned.Score,
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].StudentID < rows[j].StudentID })
	return rows, nil
}

func (f *fakeStore) CreateSubmission(_ context.Context, sub model.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	assigned, ok := f.assignments[sub.ProjectID][sub.StudentID]
	if !ok {
		return repository.ErrNotFound
	}
	if assigned.Status == model.AssignmentPassed || assigned.Status == model.AssignmentSubmitted {
		return repository.ErrConflict
	}
	assigned.Status = model.AssignmentSubmitted
	f.submissions[sub.ID] = sub
	return nil
}

func (f *fakeStore) GetSubmission(_ context.Context, submissionID string) (model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.submissions[submissionID]
	if !ok {
		return model.Submission{}, repository.ErrNotFound
	}
	return sub, nil
}

func (f *fakeStore) ListPendingSubmissions(_ context.Context) ([]model.PendingSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.PendingSubmission
	for _, sub := range f.submissions {
		if sub.Status != model.SubmissionPending {
			continue
		}
		out = append(out, model.PendingSubmission{
			Submission:  sub,
			ProjectName: f.projects[sub.ProjectID].Name,
			StudentName: f.users[sub.StudentID].Name,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (f *fakeStore) ReviewSubmission(_ context.Context, review repository.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.submissions[review.SubmissionID]
	if !ok {
		return repository.ErrNotFound
	}
	if sub.Status != model.SubmissionPending {
		return repository.ErrConflict
	}
	sub.Status = review.Status
	sub.Score = review.Score
	sub.Feedback = review.Feedback
	reviewedAt := review.ReviewedAt
	sub.ReviewedAt = &reviewedAt
	sub.ReviewedBy = &review.ReviewerID
	f.submissions[sub.ID] = sub

	assigned := f.assignments[sub.ProjectID][sub.StudentID]
	if assigned.Status == model.AssignmentPassed {
		return nil
	}
	assigned.Status = model.AssignmentRejected
	if review.Status == model.SubmissionPassed {
		assigned.Status = model.AssignmentPassed
	}
	assigned.Score = review.Score
	return nil
}

func (f *fakeStore) CreateMessage(_ context.Context, msg model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeStore) ListMessagesFor(_ context.Context, userID string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, msg := range f.messages {
		if msg.Hidden {
			continue
		}
		if msg.SenderID == userID || (msg.RecipientID != nil && *msg.RecipientID == userID) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAllMessages(_ context.Context) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message(nil), f.messages...), nil
}

func (f *fakeStore) HideMessage(_ context.Context, messageID, hiddenBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.messages {
		if f.messages[i].ID == messageID {
			f.messages[i].Hidden = true
			f.messages[i].HiddenBy = &hiddenBy
			return nil
		}
	}
	return repository.ErrNotFound
}
