package http

import (
	"net/http"

	"housesplit/internal/core"
	"housesplit/internal/log"
	"housesplit/internal/services"
)

type createExpenseRequest struct {
	Cost     *core.Money `json:"cost" validate:"required"`
	PersonID int64       `json:"person_id" validate:"required,gt=0"`
	Date     core.Date   `json:"date"`
	Comment  string      `json:"comment" validate:"max=500"`
}

// updateExpenseRequest carries a partial update. Absent fields are kept.
type updateExpenseRequest struct {
	Cost     *core.Money `json:"cost"`
	PersonID *int64      `json:"person_id" validate:"omitempty,gt=0"`
	Date     *core.Date  `json:"date"`
	Comment  *string     `json:"comment" validate:"omitempty,max=500"`
}

type importCSVRequest struct {
	CSVContent string `json:"csvContent" validate:"required"`
}

type importCSVResponse struct {
	Imported int            `json:"imported"`
	Expenses []core.Expense `json:"expenses"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r.URL.Query().Get("month"), false)
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}

	expenses, err := s.svc.Expenses.List(r.Context(), month)
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	NewResponse().JSON(expenses).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(r, err).Write(w)
		return
	}

	created, err := s.svc.Expenses.Create(r.Context(), core.Expense{
		Cost:     *req.Cost,
		PersonID: req.PersonID,
		Date:     req.Date,
		Comment:  sanitizeInput(req.Comment),
	})
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense created",
		log.NewFields().
			WithOperation(log.OpCreate).
			WithExpense(created.ID, created.PersonID, created.Cost.Cents, string(created.Date.MonthKey())).
			ToSlice()...)
	NewResponse().Status(http.StatusCreated).JSON(created).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	var req updateExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(r, err).Write(w)
		return
	}

	patch := services.ExpensePatch{
		Cost:     req.Cost,
		PersonID: req.PersonID,
		Date:     req.Date,
	}
	if req.Comment != nil {
		comment := sanitizeInput(*req.Comment)
		patch.Comment = &comment
	}

	updated, err := s.svc.Expenses.Update(r.Context(), id, patch)
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	NewResponse().JSON(updated).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}

	deleted, err := s.svc.Expenses.Delete(r.Context(), id)
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldExpenseID, deleted.ID,
		log.FieldMonthKey, deleted.Date.MonthKey())
	NewResponse().JSON(deleted).Write(w)
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	var req importCSVRequest
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(r, err).Write(w)
		return
	}

	created, err := s.svc.Expenses.ImportCSV(r.Context(), req.CSVContent)
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "CSV imported",
		log.FieldOperation, log.OpImport,
		"count", len(created))
	NewResponse().
		Status(http.StatusCreated).
		JSON(importCSVResponse{Imported: len(created), Expenses: created}).
		Write(w)
}
