package http

import (
	"net/http"

	"housesplit/internal/log"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r.PathValue("monthKey"), true)
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}

	sum, err := s.svc.Summaries.Summary(r.Context(), month)
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	if len(sum.UnmatchedPayers) > 0 {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Summary has expenses from unknown payers",
			log.FieldMonthKey, month,
			"unmatched_payers", sum.UnmatchedPayers)
	}
	NewResponse().JSON(sum).Write(w)
}

// handleReports aggregates spending between the optional from and to months.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := monthParam(q.Get("from"), false)
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	to, err := monthParam(q.Get("to"), false)
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	if from != "" && to != "" && to.Before(from) {
		BadRequestError("from must not be after to").Write(w)
		return
	}

	rep, err := s.svc.Reports.Report(r.Context(), from, to)
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	NewResponse().JSON(rep).Write(w)
}
