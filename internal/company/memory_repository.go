package company

import (
	"context"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu           sync.RWMutex
	companies    map[string]Company
	associations map[string]map[string]struct{} // account id -> company ids
}

// NewMemoryRepository constructs an in-memory repository for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		companies:    make(map[string]Company),
		associations: make(map[string]map[string]struct{}),
	}
}

func (r *memoryRepository) Create(_ context.Context, c Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.companies {
		if existing.TaxID == c.TaxID {
			return nil
		}
	}
	r.companies[c.ID] = c
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Company, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.companies[id]
	if !ok {
		return Company{}, ErrNotFound
	}
	return c, nil
}

func (r *memoryRepository) ListByStatus(_ context.Context, status string) ([]Company, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Company
	for _, c := range r.companies {
		if c.Status == status {
			out = append(out, c)
		}
	}
	sortByName(out)
	return out, nil
}

func (r *memoryRepository) Associate(_ context.Context, accountID, companyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.companies[companyID]; !ok {
		return ErrNotFound
	}
	set, ok := r.associations[accountID]
	if !ok {
		set = make(map[string]struct{})
		r.associations[accountID] = set
	}
	if _, exists := set[companyID]; exists {
		return ErrAlreadyAssociated
	}
	set[companyID] = struct{}{}
	return nil
}

func (r *memoryRepository) ListForAccount(_ context.Context, accountID string) ([]Company, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Company
	for id := range r.associations[accountID] {
		out = append(out, r.companies[id])
	}
	sortByName(out)
	return out, nil
}

func sortByName(cs []Company) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Name < cs[j].Name })
}
