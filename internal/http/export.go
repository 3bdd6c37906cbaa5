package http

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/sally802528/grade-query-education-system/internal/model"
)

var exportHeader = []string{"學號", "姓名", "班級", "項目", "截止日期", "狀態", "分數"}

var statusLabels = map[model.AssignmentStatus]string{
	model.AssignmentAssigned:  "待繳交",
	model.AssignmentSubmitted: "待審核",
	model.AssignmentPassed:    "已完成",
	model.AssignmentRejected:  "已退回",
}

// utf8BOM makes spreadsheet tools detect the encoding.
const utf8BOM = "\ufeff"

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.GradeReport(r.Context())
	if err != nil {
		s.storeError(w, err, "找不到成績")
		return
	}

	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	if err := writeGradeCSV(&buf, rows); err != nil {
		s.storeError(w, err, "")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="grade_report.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func writeGradeCSV(buf *bytes.Buffer, rows []model.GradeRow) error {
	cw := csv.NewWriter(buf)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, row := range rows {
		class := ""
		if row.Class != nil {
			class = *row.Class
		}
		score := ""
		if row.Score != nil {
			score = strconv.Itoa(*row.Score)
		}
		status, ok := statusLabels[row.Status]
		if !ok {
			status = string(row.Status)
		}
		record := []string{row.StudentID, row.StudentName, class, row.ProjectName, row.Deadline.Format(dateLayout), status, score}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
