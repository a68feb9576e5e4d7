package services

import (
	"context"
	"fmt"
	"strings"

	"housesplit/internal/core"
)

type PeopleService struct {
	store     PeopleStore
	summaries Invalidator
}

func NewPeopleService(store PeopleStore, summaries Invalidator) *PeopleService {
	return &PeopleService{store: store, summaries: summaries}
}

func (s *PeopleService) List(ctx context.Context) ([]core.Person, error) {
	return s.store.ListPeople(ctx)
}

// Create adds a person. Months without shares split equally across everyone,
// so every cached summary is dropped.
func (s *PeopleService) Create(ctx context.Context, name string) (core.Person, error) {
	p := core.Person{Name: strings.TrimSpace(name)}
	if err := p.Validate(); err != nil {
		return core.Person{}, err
	}

	created, err := s.store.CreatePerson(ctx, p.Name)
	if err != nil {
		return core.Person{}, fmt.Errorf("create person: %w", err)
	}

	if s.summaries != nil {
		s.summaries.InvalidateAll()
	}
	return created, nil
}
