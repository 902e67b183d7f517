// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"weightlog/internal/domain"
)

type dayKey struct {
	userID int64
	day    string
}

// DB implements an in-memory database storage.
type DB struct {
	mu          sync.Mutex
	weights     map[dayKey]*domain.WeightObservation
	preferences map[int64]domain.UserPreferences
	users       []*domain.User
	sessions    map[string]*domain.Session

	weightIDCounter int64
	userIDCounter   int64
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		weights:     make(map[dayKey]*domain.WeightObservation),
		preferences: make(map[int64]domain.UserPreferences),
		sessions:    make(map[string]*domain.Session),
	}
}

// Ensure interfaces are met.
var _ domain.WeightRepository = (*DB)(nil)
var _ domain.PreferencesRepository = (*DB)(nil)
var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

// --- WeightRepository ---

// Upsert stores weightKg as the user's observation for the local day of at,
// replacing any earlier observation of that day.
func (db *DB) Upsert(ctx context.Context, userID int64, weightKg float64, at time.Time) (*domain.WeightObservation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := time.Now().UTC()
	k := dayKey{userID, domain.DayKey(at)}
	if o, ok := db.weights[k]; ok {
		o.WeightKg = weightKg
		o.Timestamp = at
		o.UpdatedAt = now
		ret := *o
		return &ret, nil
	}

	db.weightIDCounter++
	o := &domain.WeightObservation{
		ID:        db.weightIDCounter,
		UserID:    userID,
		Day:       k.day,
		WeightKg:  weightKg,
		Timestamp: at,
		CreatedAt: now,
		UpdatedAt: now,
	}
	db.weights[k] = o
	ret := *o
	return &ret, nil
}

// QueryRange returns the user's observations at or after since, ascending.
func (db *DB) QueryRange(ctx context.Context, userID int64, since time.Time) ([]domain.WeightObservation, error) {
	return db.collect(userID, func(o *domain.WeightObservation) bool {
		return !o.Timestamp.Before(since)
	}), nil
}

// QueryDays returns the user's observations for fromDay..toDay inclusive, ascending.
func (db *DB) QueryDays(ctx context.Context, userID int64, fromDay, toDay string) ([]domain.WeightObservation, error) {
	return db.collect(userID, func(o *domain.WeightObservation) bool {
		return o.Day >= fromDay && o.Day <= toDay
	}), nil
}

func (db *DB) collect(userID int64, keep func(*domain.WeightObservation) bool) []domain.WeightObservation {
	db.mu.Lock()
	defer db.mu.Unlock()

	result := []domain.WeightObservation{}
	for k, o := range db.weights {
		if k.userID == userID && keep(o) {
			result = append(result, *o)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].ID < result[j].ID
		}
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result
}

// ByDay returns the observation for day, or nil.
func (db *DB) ByDay(ctx context.Context, userID int64, day string) (*domain.WeightObservation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if o, ok := db.weights[dayKey{userID, day}]; ok {
		ret := *o
		return &ret, nil
	}
	return nil, nil
}

// Latest returns the most recent observation, or nil.
func (db *DB) Latest(ctx context.Context, userID int64) (*domain.WeightObservation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var latest *domain.WeightObservation
	for k, o := range db.weights {
		if k.userID != userID {
			continue
		}
		if latest == nil || o.Timestamp.After(latest.Timestamp) {
			latest = o
		}
	}
	if latest == nil {
		return nil, nil
	}
	ret := *latest
	return &ret, nil
}

// Delete removes an observation by ID. Unknown IDs are ignored.
func (db *DB) Delete(ctx context.Context, userID, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for k, o := range db.weights {
		if k.userID == userID && o.ID == id {
			delete(db.weights, k)
			return nil
		}
	}
	return nil
}

// --- PreferencesRepository ---

// GetPreferences returns the stored preferences, or nil.
func (db *DB) GetPreferences(ctx context.Context, userID int64) (*domain.UserPreferences, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if p, ok := db.preferences[userID]; ok {
		return &p, nil
	}
	return nil, nil
}

// SavePreferences replaces the user's preferences.
func (db *DB) SavePreferences(ctx context.Context, p domain.UserPreferences) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.preferences[p.UserID] = p
	return nil
}

// ListReminders returns every user with reminders enabled.
func (db *DB) ListReminders(ctx context.Context) ([]domain.UserPreferences, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.UserPreferences
	for _, p := range db.preferences {
		if p.ReminderEnabled {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// --- UserRepository ---

// GetByUsername retrieves a user by username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			ret := *u
			return &ret, nil
		}
	}
	return nil, nil
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			ret := *u
			return &ret, nil
		}
	}
	return nil, nil
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			return nil, errors.New("user already exists")
		}
	}

	db.userIDCounter++
	u := &domain.User{
		ID:           db.userIDCounter,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	db.users = append(db.users, u)
	ret := *u
	return &ret, nil
}

// UpdatePassword replaces a user's password hash.
func (db *DB) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			u.PasswordHash = passwordHash
			return nil
		}
	}
	return domain.ErrNotFound
}

// Count returns the total number of users.
func (db *DB) Count(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.users), nil
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create records an issued token.
func (r *SessionRepo) Create(ctx context.Context, userID int64, tokenID string, expiresAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.sessions[tokenID] = &domain.Session{
		TokenID:   tokenID,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// GetByToken retrieves a session by token id.
func (r *SessionRepo) GetByToken(ctx context.Context, tokenID string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s, ok := r.db.sessions[tokenID]; ok {
		ret := *s
		return &ret, nil
	}
	return nil, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, tokenID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, tokenID)
	return nil
}

// DeleteForUser deletes every session of a user.
func (r *SessionRepo) DeleteForUser(ctx context.Context, userID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for k, v := range r.db.sessions {
		if v.UserID == userID {
			delete(r.db.sessions, k)
		}
	}
	return nil
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	for k, v := range r.db.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.sessions, k)
		}
	}
	return nil
}
