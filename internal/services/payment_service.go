package services

import (
	"context"
	"fmt"
	"strings"

	"housesplit/internal/core"
)

type PaymentService struct {
	store     PaymentStore
	summaries Invalidator
}

func NewPaymentService(store PaymentStore, summaries Invalidator) *PaymentService {
	return &PaymentService{store: store, summaries: summaries}
}

// List returns the month's payment records keyed by payment key.
func (s *PaymentService) List(ctx context.Context, month core.MonthKey) (map[string]core.PaymentRecord, error) {
	records, err := s.store.ListPayments(ctx, month)
	if err != nil {
		return nil, err
	}
	out := make(map[string]core.PaymentRecord, len(records))
	for _, r := range records {
		out[r.PaymentKey] = r
	}
	return out, nil
}

// Upsert records whether a settlement was paid. Concurrent writers race;
// the last write wins.
func (s *PaymentService) Upsert(ctx context.Context, p core.PaymentRecord) (core.PaymentRecord, error) {
	p.PaymentKey = strings.TrimSpace(p.PaymentKey)
	switch {
	case p.PaymentKey == "":
		return core.PaymentRecord{}, fmt.Errorf("%w: payment key is required", ErrInvalidPayment)
	case p.FromID <= 0 || p.ToID <= 0:
		return core.PaymentRecord{}, fmt.Errorf("%w: from and to are required", ErrInvalidPayment)
	case p.Amount.Cents < 0:
		return core.PaymentRecord{}, fmt.Errorf("%w: %w", ErrInvalidPayment, core.ErrInvalidAmount)
	}
	if _, err := core.ParseMonthKey(string(p.MonthKey)); err != nil {
		return core.PaymentRecord{}, err
	}

	saved, err := s.store.UpsertPayment(ctx, p)
	if err != nil {
		return core.PaymentRecord{}, fmt.Errorf("save payment: %w", err)
	}

	if s.summaries != nil {
		s.summaries.Invalidate(p.MonthKey)
	}
	return saved, nil
}
