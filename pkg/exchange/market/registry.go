package market

import "fmt"

// Registry tracks every market by id and issues sequential ids. Status
// transitions are validated here: Resolved is terminal.
//
// Like the order book, the registry does not lock; the engine serializes
// access.
type Registry struct {
	markets map[string]*Market
	nextSeq uint64
}

func NewRegistry() *Registry {
	return &Registry{markets: make(map[string]*Market)}
}

// NextID issues the next market id.
func (r *Registry) NextID() string {
	r.nextSeq++
	return fmt.Sprintf("mkt-%d", r.nextSeq)
}

// Register adds a market. The id must be unused.
func (r *Registry) Register(m *Market) error {
	if m == nil {
		return fmt.Errorf("cannot register nil market")
	}
	if _, exists := r.markets[m.ID]; exists {
		return fmt.Errorf("%w: %s", ErrMarketExists, m.ID)
	}
	r.markets[m.ID] = m
	return nil
}

// Get retrieves a market by id.
func (r *Registry) Get(id string) (*Market, error) {
	m, ok := r.markets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, id)
	}
	return m, nil
}

// List returns all markets in unspecified order.
func (r *Registry) List() []*Market {
	out := make([]*Market, 0, len(r.markets))
	for _, m := range r.markets {
		out = append(out, m)
	}
	return out
}

// UpdateStatus changes a market's trading status.
func (r *Registry) UpdateStatus(id string, status Status) error {
	m, ok := r.markets[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMarketNotFound, id)
	}
	if m.Status == Resolved {
		return fmt.Errorf("%w: %s is resolved", ErrMarketInactive, id)
	}
	m.Status = status
	return nil
}

// Count returns the number of registered markets.
func (r *Registry) Count() int { return len(r.markets) }

// Restore installs a market loaded from storage and advances the id
// sequence past it.
func (r *Registry) Restore(m *Market, seq uint64) {
	r.markets[m.ID] = m
	if seq > r.nextSeq {
		r.nextSeq = seq
	}
}
