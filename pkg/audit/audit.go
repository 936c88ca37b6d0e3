// Package audit records successful logins. Entries are append-only and are
// written inside the login transaction.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/tendant/simple-access/pkg/dbtx"
	"github.com/tendant/simple-access/pkg/device"
)

// LoginEntry is one successful login.
type LoginEntry struct {
	ID        string           `json:"id"`
	AccountID int64            `json:"user_id"`
	Timestamp time.Time        `json:"timestamp"`
	IP        string           `json:"ip"`
	Location  string           `json:"location"`
	UserAgent device.UserAgent `json:"user_agent"`
}

// NewLoginEntry stamps an entry for accountID from the session context.
func NewLoginEntry(accountID int64, sc device.SessionContext) LoginEntry {
	return LoginEntry{
		ID:        newID(),
		AccountID: accountID,
		Timestamp: time.Now().UTC(),
		IP:        sc.IP,
		Location:  sc.Location,
		UserAgent: sc.UserAgent,
	}
}

// Sink appends login entries.
type Sink interface {
	RecordLogin(ctx context.Context, entry LoginEntry) error
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

func newID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// PostgresSink writes to login_logs.
type PostgresSink struct {
	db dbtx.DBTX
}

func NewPostgresSink(db dbtx.DBTX) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) RecordLogin(ctx context.Context, e LoginEntry) error {
	ua, err := json.Marshal(e.UserAgent)
	if err != nil {
		return fmt.Errorf("failed to encode user agent: %w", err)
	}
	_, err = dbtx.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO login_logs (id, user_id, timestamp, ip, location, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.AccountID, e.Timestamp, e.IP, e.Location, ua,
	)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// InMemSink keeps entries in order; entries written in a failed
// dbtx.MemRunner transaction are dropped.
type InMemSink struct {
	mu      sync.Mutex
	entries []LoginEntry
	Err     error
}

func NewInMemSink() *InMemSink {
	return &InMemSink{}
}

func (s *InMemSink) RecordLogin(ctx context.Context, e LoginEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	s.entries = append(s.entries, e)
	dbtx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := len(s.entries) - 1; i >= 0; i-- {
			if s.entries[i].ID == e.ID {
				s.entries = append(s.entries[:i], s.entries[i+1:]...)
				return
			}
		}
	})
	return nil
}

// Entries returns a copy of the recorded entries.
func (s *InMemSink) Entries() []LoginEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LoginEntry(nil), s.entries...)
}
