package http

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
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

type studentSummaryResponse struct {
	UserID         string  `json:"userId"`
	Name           string  `json:"name"`
	Class          *string `json:"class"`
	Email          *string `json:"email"`
	ProjectCount   int     `json:"projectCount"`
	CompletedCount int     `json:"completedCount"`
	PendingReview  int     `json:"pendingReview"`
}

type createStudentRequest struct {
	UserID          string  `json:"userId"`
	Name            string  `json:"name"`
	Class           *string `json:"class"`
	Email           *string `json:"email"`
	InitialPassword string  `json:"initialPassword"`
}

type updateStudentRequest struct {
	Name     *string `json:"name"`
	Class    *string `json:"class"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type assignRequest struct {
	StudentIDs   []string `json:"studentIds"`
	ProjectName  string   `json:"projectName"`
	Deadline     string   `json:"deadline"`
	Description  string   `json:"description"`
	RequiredFile *bool    `json:"requiredFile"`
}

type assignResponse struct {
	Success   bool   `json:"success"`
	ProjectID string `json:"projectId"`
	Message   string `json:"message"`
}

type pendingSubmissionResponse struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"projectId"`
	ProjectName   string    `json:"projectName"`
	StudentID     string    `json:"studentId"`
	StudentName   string    `json:"studentName"`
	SubmissionURL *string   `json:"submissionUrl"`
	FileName      *string   `json:"fileName,omitempty"`
	Note          *string   `json:"note,omitempty"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

type reviewRequest struct {
	Action   string  `json:"action"`
	Score    *int    `json:"score"`
	Feedback *string `json:"feedback"`
}

type teacherMessageRequest struct {
	StudentID string  `json:"studentId"`
	ProjectID *string `json:"projectId"`
	Content   string  `json:"content"`
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.store.ListStudents(r.Context())
	if err != nil {
		s.storeError(w, err, "找不到學生")
		return
	}
	resp := make([]studentSummaryResponse, 0, len(students))
	for _, st := range students {
		resp = append(resp, studentSummaryResponse{
			UserID:         st.UserID,
			Name:           st.Name,
			Class:          st.Class,
			Email:          st.Email,
			ProjectCount:   st.ProjectCount,
			CompletedCount: st.CompletedCount,
			PendingReview:  st.PendingReview,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req createStudentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "請求格式錯誤")
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.Name = strings.TrimSpace(req.Name)
	if req.UserID == "" || req.Name == "" || req.InitialPassword == "" {
		writeError(w, http.StatusBadRequest, "請提供學號、姓名與初始密碼")
		return
	}
	if utf8.RuneCountInString(req.InitialPassword) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "密碼長度至少 6 個字元")
		return
	}

	hash, err := crypto.HashPassword(req.InitialPassword)
	if err != nil {
		log.Printf("hash password failed: %v", err)
		writeError(w, http.StatusInternalServerError, "伺服器錯誤")
		return
	}
	now := s.now().UTC()
	err = s.store.CreateUser(r.Context(), model.User{
		UserID:       req.UserID,
		PasswordHash: hash,
		Role:         model.RoleStudent,
		Name:         req.Name,
		Class:        optionalString(req.Class),
		Email:        optionalString(req.Email),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, repository.ErrConflict) {
		writeError(w, http.StatusConflict, "學號已存在")
		return
	}
	if err != nil {
		s.storeError(w, err, "")
		return
	}
	writeResult(w, http.StatusCreated, "已成功新增學生 "+req.Name)
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	var req updateStudentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "請求格式錯誤")
		return
	}

	update := repository.StudentUpdate{
		Name:  optionalString(req.Name),
		Class: optionalString(req.Class),
		Email: optionalString(req.Email),
	}
	if req.Password != nil && *req.Password != "" {
		if utf8.RuneCountInString(*req.Password) < minPasswordLength {
			writeError(w, http.StatusBadRequest, "密碼長度至少 6 個字元")
			return
		}
		hash, err := crypto.HashPassword(*req.Password)
		if err != nil {
			log.Printf("hash password failed: %v", err)
			writeError(w, http.StatusInternalServerError, "伺服器錯誤")
			return
		}
		update.PasswordHash = &hash
	}
	if update.Name == nil && update.Class == nil && update.Email == nil && update.PasswordHash == nil {
		writeError(w, http.StatusBadRequest, "沒有需要更新的欄位")
		return
	}

	if err := s.store.UpdateStudent(r.Context(), chi.URLParam(r, "id"), update, s.now().UTC()); err != nil {
		s.storeError(w, err, "找不到學生")
		return
	}
	writeResult(w, http.StatusOK, "學生資料更新成功")
}

func (s *Server) handleAssignProject(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "請求格式錯誤")
		return
	}
	req.ProjectName = strings.TrimSpace(req.ProjectName)
	studentIDs := uniqueIDs(req.StudentIDs)
	if req.ProjectName == "" || len(studentIDs) == 0 {
		writeError(w, http.StatusBadRequest, "請提供項目名稱與學生名單")
		return
	}
	deadline, ok := parseDeadline(req.Deadline)
	if !ok {
		writeError(w, http.StatusBadRequest, "截止日期格式錯誤")
		return
	}
	requiredFile := true
	if req.RequiredFile != nil {
		requiredFile = *req.RequiredFile
	}

	project := model.Project{
		ID:           uuid.NewString(),
		Name:         req.ProjectName,
		Description:  strings.TrimSpace(req.Description),
		Deadline:     deadline,
		RequiredFile: requiredFile,
		TeacherID:    identityFrom(r).ID,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateProject(r.Context(), project, studentIDs); err != nil {
		s.storeError(w, err, "包含不存在的學生")
		return
	}
	writeJSON(w, http.StatusCreated, assignResponse{
		Success:   true,
		ProjectID: project.ID,
		Message:   fmt.Sprintf("項目 \"%s\" 已分配給 %d 位學生", project.Name, len(studentIDs)),
	})
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// parseDeadline accepts a calendar date or a full RFC 3339 timestamp.
func parseDeadline(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	pending, err := s.store.ListPendingSubmissions(r.Context())
	if err != nil {
		s.storeError(w, err, "找不到繳交")
		return
	}
	resp := make([]pendingSubmissionResponse, 0, len(pending))
	for _, p := range pending {
		item := pendingSubmissionResponse{
			ID:          p.ID,
			ProjectID:   p.ProjectID,
			ProjectName: p.ProjectName,
			StudentID:   p.StudentID,
			StudentName: p.StudentName,
			FileName:    p.FileName,
			Note:        p.Note,
			SubmittedAt: p.SubmittedAt,
		}
		if p.FileKey != nil {
			url := "/api/teacher/submissions/" + p.ID + "/file"
			item.SubmissionURL = &url
		}
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmissionFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, err := s.store.GetSubmission(ctx, chi.URLParam(r, "submissionId"))
	if err != nil {
		s.storeError(w, err, "找不到繳交")
		return
	}
	if sub.FileKey == nil {
		writeError(w, http.StatusNotFound, "此繳交沒有檔案")
		return
	}

	body, err := s.files.Open(ctx, *sub.FileKey)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "找不到檔案")
		return
	}
	if err != nil {
		log.Printf("open submission file %s failed: %v", sub.ID, err)
		writeError(w, http.StatusInternalServerError, "伺服器錯誤")
		return
	}
	defer body.Close()

	contentType := "application/octet-stream"
	if sub.ContentType != nil && *sub.ContentType != "" {
		contentType = *sub.ContentType
	}
	fileName := "submission"
	if sub.FileName != nil && *sub.FileName != "" {
		fileName = *sub.FileName
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		log.Printf("stream submission file %s failed: %v", sub.ID, err)
	}
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "請求格式錯誤")
		return
	}

	var status model.SubmissionStatus
	var label string
	switch req.Action {
	case "pass":
		status, label = model.SubmissionPassed, "通過"
	case "reject":
		status, label = model.SubmissionRejected, "退回"
	default:
		writeError(w, http.StatusBadRequest, "action 必須是 pass 或 reject")
		return
	}
	if req.Score != nil && (*req.Score < 0 || *req.Score > 100) {
		writeError(w, http.StatusBadRequest, "分數必須介於 0 到 100")
		return
	}

	err := s.store.ReviewSubmission(r.Context(), repository.Review{
		SubmissionID: chi.URLParam(r, "submissionId"),
		Status:       status,
		Score:        req.Score,
		Feedback:     optionalString(req.Feedback),
		ReviewerID:   identityFrom(r).ID,
		ReviewedAt:   s.now().UTC(),
	})
	if errors.Is(err, repository.ErrConflict) {
		writeError(w, http.StatusConflict, "此繳交已審核")
		return
	}
	if err != nil {
		s.storeError(w, err, "找不到繳交")
		return
	}
	writeResult(w, http.StatusOK, "審核操作成功：已標記為 "+label)
}

func (s *Server) handleTeacherMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.store.ListAllMessages(r.Context())
	if err != nil {
		s.storeError(w, err, "找不到留言")
		return
	}
	writeJSON(w, http.StatusOK, toMessageResponses(messages))
}

func (s *Server) handleTeacherSendMessage(w http.ResponseWriter, r *http.Request) {
	var req teacherMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "請求格式錯誤")
		return
	}
	content, ok := messageContent(w, req.Content)
	if !ok {
		return
	}
	if req.StudentID == "" {
		writeError(w, http.StatusBadRequest, "請指定學生")
		return
	}

	ctx := r.Context()
	student, err := s.store.GetUser(ctx, req.StudentID)
	if err != nil {
		s.storeError(w, err, "找不到學生")
		return
	}
	if student.Role != model.RoleStudent {
		writeError(w, http.StatusNotFound, "找不到學生")
		return
	}
	projectID := optionalString(req.ProjectID)
	if projectID != nil {
		if _, err := s.store.GetAssignedProject(ctx, *projectID, student.UserID); err != nil {
			s.storeError(w, err, "找不到此項目")
			return
		}
	}

	s.sendMessage(w, r, model.Message{
		ID:          uuid.NewString(),
		SenderID:    identityFrom(r).ID,
		RecipientID: &student.UserID,
		ProjectID:   projectID,
		Body:        content,
	})
}

func (s *Server) handleHideMessage(w http.ResponseWriter, r *http.Request) {
	err := s.store.HideMessage(r.Context(), chi.URLParam(r, "messageId"), identityFrom(r).ID)
	if err != nil {
		s.storeError(w, err, "找不到留言")
		return
	}
	writeResult(w, http.StatusOK, "留言已屏蔽/刪除")
}
