package generate

import (
	"fmt"
	"sync"
)

// domains accumulates the identifier values materialized per entity column.
// Appends and draws are concurrency-safe; values are never removed, so a
// foreign key drawn at any point stays valid for the rest of the run.
type domains struct {
	mu sync.RWMutex
	m  map[string][]any
}

func newDomains() *domains {
	return &domains{m: make(map[string][]any)}
}

func domainKey(entity, column string) string {
	return entity + "." + column
}

// appendValue adds one materialized value to an entity column's domain.
func (d *domains) appendValue(entity, column string, v any) {
	d.mu.Lock()
	d.m[domainKey(entity, column)] = append(d.m[domainKey(entity, column)], v)
	d.mu.Unlock()
}

// size returns the current domain size for an entity column.
func (d *domains) size(entity, column string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.m[domainKey(entity, column)])
}

// values snapshots an entity column's domain. The slice is append-only, so
// the snapshot stays valid after release.
func (d *domains) values(entity, column string) ([]any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	vals := d.m[domainKey(entity, column)]
	if len(vals) == 0 {
		return nil, fmt.Errorf("no %s.%s values materialized to draw from", entity, column)
	}
	return vals, nil
}
