package http

import (
	"net/http"
	"time"

	"housesplit/internal/core"
	"housesplit/internal/log"
)

type createPersonRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type saveSharesRequest struct {
	Shares map[int64]core.Percent `json:"shares" validate:"required"`
}

type latestSharesResponse struct {
	MonthKey core.MonthKey          `json:"monthKey,omitempty"`
	Shares   map[int64]core.Percent `json:"shares"`
}

type upsertPaymentRequest struct {
	PaymentKey string      `json:"paymentKey" validate:"required"`
	MonthKey   string      `json:"monthKey" validate:"required"`
	FromID     int64       `json:"fromPersonId" validate:"required,gt=0"`
	ToID       int64       `json:"toPersonId" validate:"required,gt=0"`
	Amount     *core.Money `json:"amount" validate:"required"`
	Paid       bool        `json:"paid"`
}

// paymentStatus is the per-key view returned when listing a month's payments.
type paymentStatus struct {
	Paid      bool      `json:"paid"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleListPeople(w http.ResponseWriter, r *http.Request) {
	people, err := s.svc.People.List(r.Context())
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	if people == nil {
		people = []core.Person{}
	}
	NewResponse().JSON(people).Write(w)
}

func (s *Server) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	var req createPersonRequest
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(r, err).Write(w)
		return
	}

	created, err := s.svc.People.Create(r.Context(), sanitizeInput(req.Name))
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Person created",
		log.FieldPersonID, created.ID)
	NewResponse().Status(http.StatusCreated).JSON(created).Write(w)
}

func (s *Server) handleGetShares(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r.PathValue("monthKey"), true)
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}

	shares, err := s.svc.Shares.Get(r.Context(), month)
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	NewResponse().JSON(shares).Write(w)
}

func (s *Server) handleSaveShares(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r.PathValue("monthKey"), true)
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	var req saveSharesRequest
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(r, err).Write(w)
		return
	}

	saved, err := s.svc.Shares.Save(r.Context(), month, req.Shares)
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}

	out := make(map[int64]core.Percent, len(saved))
	for _, sh := range saved {
		out[sh.PersonID] = sh.Percent
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Monthly shares saved",
		log.FieldMonthKey, month,
		"participants", len(saved))
	NewResponse().JSON(latestSharesResponse{MonthKey: month, Shares: out}).Write(w)
}

func (s *Server) handleLatestShares(w http.ResponseWriter, r *http.Request) {
	month, shares, err := s.svc.Shares.Latest(r.Context())
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	NewResponse().JSON(latestSharesResponse{MonthKey: month, Shares: shares}).Write(w)
}

// handleListPayments serves both /payments?monthKey= and /payments/{monthKey}.
func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("monthKey")
	if raw == "" {
		raw = r.URL.Query().Get("monthKey")
	}
	if raw == "" {
		BadRequestError("monthKey is required").Write(w)
		return
	}
	month, err := monthParam(raw, true)
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}

	records, err := s.svc.Payments.List(r.Context(), month)
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	out := make(map[string]paymentStatus, len(records))
	for key, rec := range records {
		out[key] = paymentStatus{Paid: rec.Paid, UpdatedAt: rec.UpdatedAt, CreatedAt: rec.CreatedAt}
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleUpsertPayment(w http.ResponseWriter, r *http.Request) {
	var req upsertPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(r, err).Write(w)
		return
	}

	saved, err := s.svc.Payments.Upsert(r.Context(), core.PaymentRecord{
		PaymentKey: req.PaymentKey,
		MonthKey:   core.MonthKey(req.MonthKey),
		FromID:     req.FromID,
		ToID:       req.ToID,
		Amount:     *req.Amount,
		Paid:       req.Paid,
	})
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Payment recorded",
		log.FieldMonthKey, saved.MonthKey,
		"payment_key", saved.PaymentKey,
		"paid", saved.Paid)
	NewResponse().JSON(saved).Write(w)
}
