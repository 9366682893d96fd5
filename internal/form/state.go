package form

import (
	"context"
	"fmt"
	"sync"
)

// State tracks the uploads of one open form. A field is busy from
// BeginUpload until CompleteUpload or FailUpload, and the form cannot be
// submitted while any field is busy.
type State struct {
	mu     sync.Mutex
	busy   map[string]bool
	values map[string]string
	errs   map[string]error
}

func NewState() *State {
	return &State{
		busy:   make(map[string]bool),
		values: make(map[string]string),
		errs:   make(map[string]error),
	}
}

func (s *State) BeginUpload(field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[field] {
		return fmt.Errorf("%s: upload already in progress", field)
	}
	s.busy[field] = true
	delete(s.errs, field)
	return nil
}

// CompleteUpload stores the returned URL as the field's value.
func (s *State) CompleteUpload(field, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, field)
	s.values[field] = url
}

// FailUpload keeps the field's previous value and records err.
func (s *State) FailUpload(field string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, field)
	s.errs[field] = err
}

func (s *State) Busy(field string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy[field]
}

func (s *State) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.busy) == 0
}

func (s *State) Value(field string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[field]
	return v, ok
}

func (s *State) Err(field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs[field]
}

// Apply copies completed upload URLs over the posted values.
func (s *State) Apply(posted map[string][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for field, url := range s.values {
		posted[field] = []string{url}
	}
}

// Upload runs fn for field, marking the field busy while it runs.
func (s *State) Upload(ctx context.Context, field string, fn func(context.Context) (string, error)) (string, error) {
	if err := s.BeginUpload(field); err != nil {
		return "", err
	}
	url, err := fn(ctx)
	if err != nil {
		s.FailUpload(field, err)
		return "", err
	}
	s.CompleteUpload(field, url)
	return url, nil
}
