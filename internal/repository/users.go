package repository

import (
	"sync"

	"evolv/internal/models"
)

// UserDirectory resolves user ids to profiles. Seeded profiles are fixed;
// profiles learned from token claims follow the latest claims.
type UserDirectory struct {
	mu     sync.RWMutex
	users  map[string]models.User
	seeded map[string]bool
}

func NewUserDirectory(users []models.User) *UserDirectory {
	d := &UserDirectory{
		users:  make(map[string]models.User, len(users)),
		seeded: make(map[string]bool, len(users)),
	}
	for _, u := range users {
		d.users[u.ID] = u
		d.seeded[u.ID] = true
	}
	return d
}

func (d *UserDirectory) Get(id string) (models.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	return u, ok
}

// Observe records the profile carried by fresh token claims and returns the
// profile to show for that user: the seeded one if any, else the claims.
func (d *UserDirectory) Observe(u models.User) models.User {
	if u.ID == "" {
		return u
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seeded[u.ID] {
		return d.users[u.ID]
	}
	d.users[u.ID] = u
	return u
}
