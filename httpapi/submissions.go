package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/justuju/flowjudge/httpjson"
	"github.com/justuju/flowjudge/logger"
	"github.com/justuju/flowjudge/srvcerror"
)

type ingestSubmissionRequest struct {
	Timestamp    string `json:"timestamp"`
	Email        string `json:"email"`
	ProblemCode  string `json:"problem_code"`
	FlowchartURL string `json:"flowchart_url"`
}

type ingestSubmissionResponse struct {
	Row int `json:"row"`
}

func (s *HttpServer) ingestSubmission(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req ingestSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.HandleError(log, w,
			srvcerror.ErrInvalidRequest("request body is not valid json").SetDebug(err))
		return
	}
	if req.Email == "" || req.ProblemCode == "" {
		httpjson.HandleError(log, w,
			srvcerror.ErrInvalidRequest("email and problem_code are required"))
		return
	}
	if req.Timestamp == "" {
		req.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	row, err := s.orch.IngestForm(r.Context(),
		req.Timestamp, req.Email, req.ProblemCode, req.FlowchartURL)
	if err != nil {
		httpjson.HandleError(log, w, err)
		return
	}
	httpjson.WriteSuccessJson(w, ingestSubmissionResponse{Row: row})
}
