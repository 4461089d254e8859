package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/salonbook/salonbook/libs/db"
)

// ProfileRepository reads display names from the users table owned by the account service.
type ProfileRepository struct {
	pool db.Querier
}

func NewProfileRepository(pool db.Querier) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// DisplayName returns "" when the user has no profile row.
func (r *ProfileRepository) DisplayName(ctx context.Context, ownerID string) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT name FROM users WHERE id = $1`, ownerID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

type MemoryProfiles struct {
	mu    sync.RWMutex
	names map[string]string
}

func NewMemoryProfiles() *MemoryProfiles {
	return &MemoryProfiles{names: make(map[string]string)}
}

func (p *MemoryProfiles) Set(ownerID, name string) {
	p.mu.Lock()
	p.names[ownerID] = name
	p.mu.Unlock()
}

func (p *MemoryProfiles) DisplayName(_ context.Context, ownerID string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.names[ownerID], nil
}
