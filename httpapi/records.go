package httpapi

import (
	"net/http"

	"github.com/justuju/flowjudge/httpjson"
	"github.com/justuju/flowjudge/logger"
	"github.com/justuju/flowjudge/record"
)

type recordView struct {
	Row          int    `json:"row"`
	Timestamp    string `json:"timestamp"`
	Email        string `json:"email"`
	ProblemCode  string `json:"problem_code"`
	FlowchartURL string `json:"flowchart_url,omitempty"`
	Status       string `json:"status"`

	CodeFileURL  string `json:"code_file_url,omitempty"`
	ModelUsed    string `json:"model_used,omitempty"`
	GeneratedAt  string `json:"generated_at,omitempty"`
	SubmissionID string `json:"submission_id,omitempty"`
	Verdict      string `json:"verdict,omitempty"`
}

func (s *HttpServer) listRecords(w http.ResponseWriter, r *http.Request) {
	recs, err := s.orch.Records(r.Context())
	if err != nil {
		httpjson.HandleError(logger.FromContext(r.Context()), w, err)
		return
	}

	// optional ?status= filter
	statusFilter := r.URL.Query().Get("status")

	views := make([]recordView, 0, len(recs))
	for _, rec := range recs {
		if statusFilter != "" && rec.Status != record.Status(statusFilter) {
			continue
		}
		views = append(views, recordView{
			Row:          rec.RowNum,
			Timestamp:    rec.Timestamp,
			Email:        rec.Email,
			ProblemCode:  rec.ProblemCode,
			FlowchartURL: rec.FlowchartURL,
			Status:       string(rec.Status),
			CodeFileURL:  rec.CodeFileURL,
			ModelUsed:    rec.ModelUsed,
			GeneratedAt:  rec.GeneratedAt,
			SubmissionID: rec.SubmissionID,
			Verdict:      rec.Verdict,
		})
	}
	httpjson.WriteSuccessJson(w, views)
}
