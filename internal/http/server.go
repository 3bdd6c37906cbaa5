package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sally802528/grade-query-education-system/internal/auth"
	"github.com/sally802528/grade-query-education-system/internal/config"
	"github.com/sally802528/grade-query-education-system/internal/crypto"
	"github.com/sally802528/grade-query-education-system/internal/model"
	"github.com/sally802528/grade-query-education-system/internal/repository"
	"github.com/sally802528/grade-query-education-system/internal/storage"
	"github.com/sally802528/grade-query-education-system/internal/throttle"
)

// Store is the persistence the handlers need; *repository.Store implements it.
type Store interface {
	GetUser(ctx context.Context, userID string) (model.User, error)
	CreateUser(ctx context.Context, user model.User) error
	UpdateStudent(ctx context.Context, userID string, update repository.StudentUpdate, now time.Time) error
	UpdatePassword(ctx context.Context, userID, passwordHash string, now time.Time) error
	ListStudents(ctx context.Context) ([]model.StudentSummary, error)

	ListAssignedProjects(ctx context.Context, studentID string) ([]model.AssignedProject, error)
	GetAssignedProject(ctx context.Context, projectID, studentID string) (model.AssignedProject, error)
	CreateProject(ctx context.Context, project model.Project, studentIDs []string) error
	GradeReport(ctx context.Context) ([]model.GradeRow, error)

	CreateSubmission(ctx context.Context, sub model.Submission) error
	GetSubmission(ctx context.Context, submissionID string) (model.Submission, error)
	ListPendingSubmissions(ctx context.Context) ([]model.PendingSubmission, error)
	ReviewSubmission(ctx context.Context, review repository.Review) error

	CreateMessage(ctx context.Context, msg model.Message) error
	ListMessagesFor(ctx context.Context, userID string) ([]model.Message, error)
	ListAllMessages(ctx context.Context) ([]model.Message, error)
	HideMessage(ctx context.Context, messageID, hiddenBy string) error
}

type Server struct {
	cfg           config.Config
	store         Store
	guard         *auth.Guard
	issuer        *auth.Issuer
	files         storage.Storage
	throttle      *throttle.LoginThrottle
	checkPassword func(hash, password string) error
	now           func() time.Time
}

// NewServer wires the HTTP handlers around guard, which callers share with
// any other transport so both enforce the same policy.
func NewServer(cfg config.Config, guard *auth.Guard, store Store, files storage.Storage, limiter *throttle.LoginThrottle) *Server {
	return &Server{
		cfg:           cfg,
		store:         store,
		guard:         guard,
		issuer:        auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL),
		files:         files,
		throttle:      limiter,
		checkPassword: crypto.CheckPassword,
		now:           time.Now,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("API 運行中..."))
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.With(s.requireAuth).Get("/me", s.handleMe)
	})

	r.Route("/api/student", func(r chi.Router) {
		r.Use(s.requireRole(model.RoleStudent))
		r.Get("/profile", s.handleStudentProfile)
		r.Get("/projects", s.handleStudentProjects)
		r.Post("/projects/{projectId}/submissions", s.handleSubmit)
		r.Put("/password", s.handleChangePassword)
		r.Get("/messages", s.handleStudentMessages)
		r.Post("/messages", s.handleStudentSendMessage)
	})

	r.Route("/api/teacher", func(r chi.Router) {
		r.Use(s.requireRole(model.RoleTeacher))
		r.Get("/students", s.handleListStudents)
		r.Post("/students", s.handleCreateStudent)
		r.Put("/students/{id}", s.handleUpdateStudent)
		r.Post("/assign", s.handleAssignProject)
		r.Get("/submissions", s.handleListSubmissions)
		r.Get("/submissions/{submissionId}/file", s.handleSubmissionFile)
		r.Put("/review/{submissionId}", s.handleReview)
		r.Get("/messages", s.handleTeacherMessages)
		r.Post("/messages", s.handleTeacherSendMessage)
		r.Delete("/messages/{messageId}", s.handleHideMessage)
		r.Get("/export", s.handleExport)
	})

	return r
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

type resultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeResult(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, resultResponse{Success: true, Message: message})
}
