// Package session owns the durable per-user conversation snapshot. The
// in-memory map is a pure read-through cache; restarts resume from the
// persisted rows.
package session

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ktwhotel/concierge/internal/models"
	"gorm.io/gorm"
)

// IdleTimeout is how long a non-idle session may sit untouched before it
// reads back as idle. The row is kept for audit until explicit reset.
const IdleTimeout = 2 * time.Hour

// Idle is the bare top-level state.
const Idle = "idle"

// Session is the live, deserialized snapshot handed to flows.
type Session struct {
	TenantID             string
	UserID               string
	SchemaVersion        string
	State                string
	Data                 map[string]interface{}
	PendingIntent        string
	PendingIntentMessage string
	DisplayName          string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Key returns the cache key for the session.
func (s *Session) Key() string { return s.TenantID + ":" + s.UserID }

// Flow returns the flow prefix of the current state, "" when idle.
func (s *Session) Flow() string {
	for i := 0; i < len(s.State); i++ {
		if s.State[i] == '.' {
			return s.State[:i]
		}
	}
	if s.State == Idle {
		return ""
	}
	return s.State
}

// GetString reads a string slot, "" when absent or not a string.
func (s *Session) GetString(key string) string {
	v, _ := s.Data[key].(string)
	return v
}

// GetStrings reads a string-list slot.
func (s *Session) GetStrings(key string) []string {
	switch v := s.Data[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Set writes one slot.
func (s *Session) Set(key string, value interface{}) {
	if s.Data == nil {
		s.Data = map[string]interface{}{}
	}
	s.Data[key] = value
}

// StoreOpts configures a Store.
type StoreOpts struct {
	DB      *gorm.DB
	Timeout time.Duration    // idle expiry, defaults to IdleTimeout
	Now     func() time.Time // defaults to time.Now
}

// Store loads and persists sessions. Writes for a single key are serialized
// by the per-key locks handed out by Lock; different keys are independent.
type Store struct {
	db      *gorm.DB
	timeout time.Duration
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore validates opts and returns a Store.
func NewStore(opts StoreOpts) (*Store, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("session: db is required")
	}
	if opts.Timeout == 0 {
		opts.Timeout = IdleTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		db:      opts.DB,
		timeout: opts.Timeout,
		now:     opts.Now,
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// Lock returns the mutex serializing work for one (tenant, user) key.
func (st *Store) Lock(tenantID, userID string) *sync.Mutex {
	key := tenantID + ":" + userID
	st.mu.Lock()
	defer st.mu.Unlock()
	l, ok := st.locks[key]
	if !ok {
		l = &sync.Mutex{}
		st.locks[key] = l
	}
	return l
}

// Load returns the session for a key, creating a fresh idle one in memory
// when no row exists yet. A non-idle row older than the idle timeout reads
// back as idle without a backend write.
func (st *Store) Load(tenantID, userID string) (*Session, error) {
	var row models.Session
	err := st.db.Where("tenant_id = ? AND user_id = ?", tenantID, userID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		now := st.now()
		return &Session{
			TenantID:      tenantID,
			UserID:        userID,
			SchemaVersion: models.SchemaVersion,
			State:         Idle,
			Data:          map[string]interface{}{},
			CreatedAt:     now,
			UpdatedAt:     now,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: load %s:%s: %w", tenantID, userID, err)
	}
	s, err := fromRow(&row)
	if err != nil {
		return nil, err
	}
	if s.State != Idle && st.now().Sub(s.UpdatedAt) > st.timeout {
		s.State = Idle
		s.PendingIntent = ""
		s.PendingIntentMessage = ""
	}
	return s, nil
}

// Save writes the session through to the backend. UpdatedAt strictly
// increases across saves of the same key.
func (st *Store) Save(s *Session) error {
	if s == nil {
		return fmt.Errorf("session: session is required")
	}
	now := st.now()
	if !now.After(s.UpdatedAt) {
		now = s.UpdatedAt.Add(time.Millisecond)
	}
	s.UpdatedAt = now
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.SchemaVersion == "" {
		s.SchemaVersion = models.SchemaVersion
	}
	row, err := toRow(s)
	if err != nil {
		return err
	}
	if err := st.db.Save(row).Error; err != nil {
		return fmt.Errorf("session: save %s: %w", s.Key(), err)
	}
	return nil
}

// Delete removes the row; the next Load starts fresh.
func (st *Store) Delete(tenantID, userID string) error {
	err := st.db.Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Delete(&models.Session{}).Error
	if err != nil {
		return fmt.Errorf("session: delete %s:%s: %w", tenantID, userID, err)
	}
	return nil
}

// Snapshot serializes the current session for a key.
func (st *Store) Snapshot(tenantID, userID string) (*models.Session, error) {
	s, err := st.Load(tenantID, userID)
	if err != nil {
		return nil, err
	}
	return toRow(s)
}

// Restore writes a snapshot back. A snapshot from a newer schema than this
// build understands is a hard error; there is no silent migration.
func (st *Store) Restore(snap *models.Session) error {
	if snap == nil {
		return fmt.Errorf("session: snapshot is required")
	}
	snapVer, err1 := strconv.Atoi(snap.SchemaVersion)
	ownVer, err2 := strconv.Atoi(models.SchemaVersion)
	if err1 != nil || err2 != nil || snapVer > ownVer {
		return fmt.Errorf("session: snapshot schema %q newer than supported %q", snap.SchemaVersion, models.SchemaVersion)
	}
	if err := st.db.Save(snap).Error; err != nil {
		return fmt.Errorf("session: restore %s:%s: %w", snap.TenantID, snap.UserID, err)
	}
	return nil
}

func toRow(s *Session) (*models.Session, error) {
	data, err := json.Marshal(s.Data)
	if err != nil {
		return nil, fmt.Errorf("session: marshal data for %s: %w", s.Key(), err)
	}
	return &models.Session{
		TenantID:             s.TenantID,
		UserID:               s.UserID,
		SchemaVersion:        s.SchemaVersion,
		State:                s.State,
		Data:                 string(data),
		PendingIntent:        s.PendingIntent,
		PendingIntentMessage: s.PendingIntentMessage,
		DisplayName:          s.DisplayName,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}, nil
}

func fromRow(row *models.Session) (*Session, error) {
	data := map[string]interface{}{}
	if row.Data != "" {
		if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
			return nil, fmt.Errorf("session: unmarshal data for %s:%s: %w", row.TenantID, row.UserID, err)
		}
	}
	return &Session{
		TenantID:             row.TenantID,
		UserID:               row.UserID,
		SchemaVersion:        row.SchemaVersion,
		State:                row.State,
		Data:                 data,
		PendingIntent:        row.PendingIntent,
		PendingIntentMessage: row.PendingIntentMessage,
		DisplayName:          row.DisplayName,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}, nil
}
