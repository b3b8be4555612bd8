package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	domain "github.com/Zhima-Mochi/clubshop/internal/domain/customer"
)

// CustomerDirectory is a fixed member list keyed by lower-cased email.
type CustomerDirectory struct {
	mu       sync.RWMutex
	statuses map[string]domain.Status
}

func NewCustomerDirectory() *CustomerDirectory {
	return &CustomerDirectory{statuses: make(map[string]domain.Status)}
}

func (d *CustomerDirectory) Put(email string, status domain.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statuses[normalizeEmail(email)] = status
}

func (d *CustomerDirectory) IsActiveCustomer(ctx context.Context, email string) (bool, error) {
	_ = ctx

	d.mu.RLock()
	defer d.mu.RUnlock()

	status, ok := d.statuses[normalizeEmail(email)]
	if !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrNotFound, email)
	}
	return status == domain.StatusActive, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
