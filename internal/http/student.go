package http

import (
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sally802528/grade-query-education-system/internal/crypto"
	"github.com/sally802528/grade-query-education-system/internal/model"
	"github.com/sally802528/grade-query-education-system/internal/repository"
	"github.com/sally802528/grade-query-education-system/internal/storage"
)

const (
	minPasswordLength = 6
	maxMessageLength  = 2000
	dateLayout        = "2006-01-02"
)

type projectResponse struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	Deadline     string                 `json:"deadline"`
	Status       model.AssignmentStatus `json:"status"`
	Score        *int                   `json:"score"`
	Teacher      string                 `json:"teacher"`
	RequiredFile bool                   `json:"requiredFile"`
}

type submissionResponse struct {
	ID          string                 `json:"id"`
	ProjectID   string                 `json:"projectId"`
	FileName    *string                `json:"fileName,omitempty"`
	Note        *string                `json:"note,omitempty"`
	Status      model.SubmissionStatus `json:"status"`
	SubmittedAt time.Time              `json:"submittedAt"`
}

type messageResponse struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	RecipientID *string   `json:"recipientId"`
	ProjectID   *string   `json:"projectId"`
	Content     string    `json:"content"`
	Hidden      bool      `json:"hidden"`
	CreatedAt   time.Time `json:"createdAt"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type studentMessageRequest struct {
	TeacherID string  `json:"teacherId"`
	ProjectID *string `json:"projectId"`
	Content   string  `json:"content"`
}

func (s *Server) handleStudentProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUser(r.Context(), identityFrom(r).ID)
	if err != nil {
		s.storeError(w, err, "找不到使用者")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleStudentProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListAssignedProjects(r.Context(), identityFrom(r).ID)
	if err != nil {
		s.storeError(w, err, "找不到項目")
		return
	}
	resp := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, projectResponse{
			ID:           p.ID,
			Name:         p.Name,
			Description:  p.Description,
			Deadline:     p.Deadline.Format(dateLayout),
			Status:       p.Status,
			Score:        p.Score,
			Teacher:      p.TeacherID,
			RequiredFile: p.RequiredFile,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	studentID := identityFrom(r).ID
	projectID := chi.URLParam(r, "projectId")

	project, err := s.store.GetAssignedProject(ctx, projectID, studentID)
	if err != nil {
		s.storeError(w, err, "找不到此項目")
		return
	}
	switch project.Status {
	case model.AssignmentPassed:
		writeError(w, http.StatusConflict, "此項目已通過審核")
		return
	case model.AssignmentSubmitted:
		writeError(w, http.StatusConflict, "此項目已有待審核的繳交")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "檔案過大")
			return
		}
		writeError(w, http.StatusBadRequest, "請求格式錯誤")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var note *string
	if value := strings.TrimSpace(r.FormValue("note")); value != "" {
		note = &value
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		if project.RequiredFile {
			writeError(w, http.StatusBadRequest, "此項目需要上傳檔案")
			return
		}
		if note == nil {
			writeError(w, http.StatusBadRequest, "請上傳檔案或填寫說明")
			return
		}
	case err != nil:
		writeError(w, http.StatusBadRequest, "請求格式錯誤")
		return
	default:
		defer file.Close()
		if header.Size > s.cfg.MaxUploadBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "檔案過大")
			return
		}
	}

	sub := model.Submission{
		ID:          uuid.NewString(),
		ProjectID:   project.ID,
		StudentID:   studentID,
		Note:        note,
		Status:      model.SubmissionPending,
		SubmittedAt: s.now().UTC(),
	}
	if file != nil {
		if err := s.storeUpload(r, &sub, file, header); err != nil {
			log.Printf("store upload for %s failed: %v", sub.ID, err)
			writeError(w, http.StatusInternalServerError, "檔案上傳失敗")
			return
		}
	}

	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		if sub.FileKey != nil {
			log.Printf("submission %s not recorded, orphaned object %s: %v", sub.ID, *sub.FileKey, err)
		}
		if errors.Is(err, repository.ErrConflict) {
			writeError(w, http.StatusConflict, "此項目目前無法繳交")
			return
		}
		s.storeError(w, err, "找不到此項目")
		return
	}

	writeJSON(w, http.StatusCreated, submissionResponse{
		ID:          sub.ID,
		ProjectID:   sub.ProjectID,
		FileName:    sub.FileName,
		Note:        sub.Note,
		Status:      sub.Status,
		SubmittedAt: sub.SubmittedAt,
	})
}

const (
	multipartMemory   = 8 << 20
	multipartOverhead = 1 << 20
)

func (s *Server) storeUpload(r *http.Request, sub *model.Submission, file multipart.File, header *multipart.FileHeader) error {
	fileName := header.Filename
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := storage.SubmissionKey(sub.ProjectID, sub.StudentID, sub.ID, fileName)
	if err := s.files.Put(r.Context(), key, contentType, io.Reader(file), header.Size); err != nil {
		return err
	}
	sub.FileKey = &key
	sub.FileName = &fileName
	sub.ContentType = &contentType
	return nil
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "請求格式錯誤")
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "請提供舊密碼與新密碼")
		return
	}
	if utf8.RuneCountInString(req.NewPassword) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "新密碼長度至少 6 個字元")
		return
	}

	ctx := r.Context()
	userID := identityFrom(r).ID
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		s.storeError(w, err, "找不到使用者")
		return
	}
	if err := crypto.CheckPassword(user.PasswordHash, req.OldPassword); err != nil {
		writeError(w, http.StatusUnauthorized, "舊密碼錯誤")
		return
	}

	hash, err := crypto.HashPassword(req.NewPassword)
	if err != nil {
		log.Printf("hash password failed: %v", err)
		writeError(w, http.StatusInternalServerError, "伺服器錯誤")
		return
	}
	if err := s.store.UpdatePassword(ctx, userID, hash, s.now().UTC()); err != nil {
		s.storeError(w, err, "找不到使用者")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "密碼已成功更新！"})
}

func (s *Server) handleStudentMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.store.ListMessagesFor(r.Context(), identityFrom(r).ID)
	if err != nil {
		s.storeError(w, err, "找不到留言")
		return
	}
	writeJSON(w, http.StatusOK, toMessageResponses(messages))
}

func (s *Server) handleStudentSendMessage(w http.ResponseWriter, r *http.Request) {
	var req studentMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "請求格式錯誤")
		return
	}
	content, ok := messageContent(w, req.Content)
	if !ok {
		return
	}
	if req.TeacherID == "" {
		writeError(w, http.StatusBadRequest, "請指定教師")
		return
	}

	ctx := r.Context()
	studentID := identityFrom(r).ID
	teacher, err := s.store.GetUser(ctx, req.TeacherID)
	if err != nil {
		s.storeError(w, err, "找不到教師")
		return
	}
	if teacher.Role != model.RoleTeacher {
		writeError(w, http.StatusNotFound, "找不到教師")
		return
	}
	projectID := optionalString(req.ProjectID)
	if projectID != nil {
		if _, err := s.store.GetAssignedProject(ctx, *projectID, studentID); err != nil {
			s.storeError(w, err, "找不到此項目")
			return
		}
	}

	s.sendMessage(w, r, model.Message{
		ID:          uuid.NewString(),
		SenderID:    studentID,
		RecipientID: &teacher.UserID,
		ProjectID:   projectID,
		Body:        content,
	})
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request, msg model.Message) {
	msg.CreatedAt = s.now().UTC()
	if err := s.store.CreateMessage(r.Context(), msg); err != nil {
		s.storeError(w, err, "找不到收件者")
		return
	}
	writeJSON(w, http.StatusCreated, toMessageResponse(msg))
}

// messageContent trims and bounds a message body, writing 400 when it is
// unusable.
func messageContent(w http.ResponseWriter, raw string) (string, bool) {
	content := strings.TrimSpace(raw)
	if content == "" {
		writeError(w, http.StatusBadRequest, "留言內容不可為空")
		return "", false
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		writeError(w, http.StatusBadRequest, "留言內容過長")
		return "", false
	}
	return content, true
}

func optionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func toMessageResponse(msg model.Message) messageResponse {
	return messageResponse{
		ID:          msg.ID,
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		ProjectID:   msg.ProjectID,
		Content:     msg.Body,
		Hidden:      msg.Hidden,
		CreatedAt:   msg.CreatedAt,
	}
}

func toMessageResponses(messages []model.Message) []messageResponse {
	resp := make([]messageResponse, 0, len(messages))
	for _, msg := range messages {
		resp = append(resp, toMessageResponse(msg))
	}
	return resp
}
