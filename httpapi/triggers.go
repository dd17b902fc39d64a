package httpapi

import (
	"context"
	"net/http"

	"github.com/justuju/flowjudge/httpjson"
	"github.com/justuju/flowjudge/lifecycle"
	"github.com/justuju/flowjudge/logger"
	"github.com/justuju/flowjudge/srvcerror"
)

type scanResponse struct {
	Scanned   int `json:"scanned"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// runExclusive rejects the request when another trigger holds the lock.
// Scans are linear and re-derive eligibility from cell values, so
// rejecting is about load, not correctness.
func (s *HttpServer) runExclusive(w http.ResponseWriter, r *http.Request, run func() error) {
	log := logger.FromContext(r.Context())
	if !s.running.TryLock() {
		httpjson.HandleError(log, w, srvcerror.ErrTriggerBusy())
		return
	}
	defer s.running.Unlock()
	if err := run(); err != nil {
		httpjson.HandleError(log, w, err)
	}
}

func (s *HttpServer) triggerScan(w http.ResponseWriter, r *http.Request,
	scan func(ctx context.Context) (lifecycle.Report, error)) {
	s.runExclusive(w, r, func() error {
		rep, err := scan(r.Context())
		if err != nil {
			return err
		}
		httpjson.WriteSuccessJson(w, scanResponse{
			Scanned:   rep.Scanned,
			Processed: rep.Processed,
			Failed:    rep.Failed,
		})
		return nil
	})
}

func (s *HttpServer) triggerGemini(w http.ResponseWriter, r *http.Request) {
	s.triggerScan(w, r, s.orch.ProcessGemini)
}

func (s *HttpServer) triggerJudge(w http.ResponseWriter, r *http.Request) {
	s.triggerScan(w, r, s.orch.ProcessJudge)
}

func (s *HttpServer) triggerVerdicts(w http.ResponseWriter, r *http.Request) {
	s.triggerScan(w, r, s.orch.PollVerdicts)
}

type enqueueResponse struct {
	Enqueued   int    `json:"enqueued"`
	Skipped    int    `json:"skipped"`
	BatchName  string `json:"batch_name,omitempty"`
	ManifestID string `json:"manifest_id,omitempty"`
}

func (s *HttpServer) triggerGeminiBatch(w http.ResponseWriter, r *http.Request) {
	s.runExclusive(w, r, func() error {
		rep, err := s.orch.EnqueueGeminiBatch(r.Context())
		if err != nil {
			return err
		}
		httpjson.WriteSuccessJson(w, enqueueResponse{
			Enqueued:   rep.Enqueued,
			Skipped:    rep.Skipped,
			BatchName:  rep.BatchName,
			ManifestID: rep.ManifestID,
		})
		return nil
	})
}

type ingestResponse struct {
	Batches int `json:"batches"`
	OK      int `json:"ok"`
	Err     int `json:"err"`
}

func (s *HttpServer) triggerIngestBatches(w http.ResponseWriter, r *http.Request) {
	s.runExclusive(w, r, func() error {
		rep, err := s.orch.IngestBatches(r.Context())
		if err != nil {
			return err
		}
		httpjson.WriteSuccessJson(w, ingestResponse{
			Batches: rep.Batches,
			OK:      rep.OK,
			Err:     rep.Err,
		})
		return nil
	})
}
