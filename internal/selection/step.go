// Package selection is the company selection step of the sign-up flow.
package selection

import (
	"errors"
	"sync"

	"github.com/docuhub/portal/internal/api"
)

// ErrEmpty blocks Continue until at least one company is selected.
var ErrEmpty = errors.New("must select at least one company")

// Step tracks the selected subset of the fetched candidates.
type Step struct {
	mu         sync.Mutex
	candidates []api.Company
	selected   map[string]bool
	errMsg     string
}

// New starts a step over candidates with nothing selected.
func New(candidates []api.Company) *Step {
	return &Step{candidates: candidates, selected: map[string]bool{}}
}

// Candidates returns the companies on offer.
func (s *Step) Candidates() []api.Company {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Company(nil), s.candidates...)
}

// Toggle flips id in or out of the selection. Unknown ids are ignored.
func (s *Step) Toggle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.known(id) {
		return
	}
	if s.selected[id] {
		delete(s.selected, id)
	} else {
		s.selected[id] = true
		s.errMsg = ""
	}
}

// Selected reports whether id is selected.
func (s *Step) Selected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected[id]
}

// Selection returns the selected ids in candidate order.
func (s *Step) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection()
}

// Continue returns the selection, or ErrEmpty (also kept as the inline error) when
// nothing is selected.
func (s *Step) Continue() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.selection()
	if len(ids) == 0 {
		s.errMsg = ErrEmpty.Error()
		return nil, ErrEmpty
	}
	s.errMsg = ""
	return ids, nil
}

// Cancel clears the selection.
func (s *Step) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = map[string]bool{}
	s.errMsg = ""
}

// Error is the inline error, if any.
func (s *Step) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

func (s *Step) selection() []string {
	ids := make([]string, 0, len(s.selected))
	for _, c := range s.candidates {
		if s.selected[c.ID] {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func (s *Step) known(id string) bool {
	for _, c := range s.candidates {
		if c.ID == id {
			return true
		}
	}
	return false
}
