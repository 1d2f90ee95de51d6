package services

import (
	"context"
	"sync"

	"github.com/samber/lo"

	"thoughtweb/domain/core/entities"
)

// ItemPool is the ordered set of items known to the application. Items can
// be flagged pending until a discovery run has compared them with the rest.
type ItemPool struct {
	mu      sync.RWMutex
	items   []entities.Item
	index   map[string]int
	pending map[string]bool
}

// NewItemPool creates an empty pool.
func NewItemPool() *ItemPool {
	return &ItemPool{
		index:   make(map[string]int),
		pending: make(map[string]bool),
	}
}

// Add appends item, or replaces the stored copy when the id is known. It
// reports whether the item was new.
func (p *ItemPool) Add(item entities.Item, pending bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pending {
		p.pending[item.ID] = true
	}
	if i, ok := p.index[item.ID]; ok {
		p.items[i] = item
		return false
	}
	p.index[item.ID] = len(p.items)
	p.items = append(p.items, item)
	return true
}

// Get returns the item with the given id.
func (p *ItemPool) Get(id string) (entities.Item, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	i, ok := p.index[id]
	if !ok {
		return entities.Item{}, false
	}
	return p.items[i], true
}

// Remove drops an item.
func (p *ItemPool) Remove(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.index[id]; !ok {
		return false
	}
	p.items = lo.Filter(p.items, func(it entities.Item, _ int) bool { return it.ID != id })
	p.index = make(map[string]int, len(p.items))
	for i, it := range p.items {
		p.index[it.ID] = i
	}
	delete(p.pending, id)
	return true
}

// Len returns the number of items.
func (p *ItemPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}

// Items implements ports.ItemSource.
func (p *ItemPool) Items(_ context.Context) ([]entities.Item, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]entities.Item(nil), p.items...), nil
}

// PendingItems implements ports.ItemSource.
func (p *ItemPool) PendingItems(_ context.Context) ([]entities.Item, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return lo.Filter(p.items, func(it entities.Item, _ int) bool { return p.pending[it.ID] }), nil
}

// MarkDiscovered implements ports.ItemSource.
func (p *ItemPool) MarkDiscovered(_ context.Context, ids []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		delete(p.pending, id)
	}
	return nil
}
