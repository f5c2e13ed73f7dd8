// Package memory keeps the whole ledger in process memory. It implements every
// repository interface plus domain.Transactor, so the services run unchanged
// against it.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"ledger/internal/domain"
)

var errNoSQL = errors.New("memory store does not execute SQL")

// Store serialises writers with a single lock. A transaction holds the write
// lock for its whole duration and restores a snapshot when it fails.
type Store struct {
	mu   sync.RWMutex
	data *state
}

type state struct {
	owners            map[int64]domain.AccountOwner
	accounts          map[int64]domain.Account
	transactions      []domain.Transaction
	outbox            []domain.OutboxMessage
	inbox             map[string]domain.InboxMessage
	nextOwnerID       int64
	nextAccountID     int64
	nextTransactionID int64
}

func NewStore() *Store {
	return &Store{data: &state{
		owners:   make(map[int64]domain.AccountOwner),
		accounts: make(map[int64]domain.Account),
		inbox:    make(map[string]domain.InboxMessage),
	}}
}

func (s *state) clone() *state {
	c := *s
	c.owners = make(map[int64]domain.AccountOwner, len(s.owners))
	for k, v := range s.owners {
		c.owners[k] = v
	}
	c.accounts = make(map[int64]domain.Account, len(s.accounts))
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	c.inbox = make(map[string]domain.InboxMessage, len(s.inbox))
	for k, v := range s.inbox {
		c.inbox[k] = v
	}
	c.transactions = append([]domain.Transaction(nil), s.transactions...)
	c.outbox = append([]domain.OutboxMessage(nil), s.outbox...)
	return &c
}

// txQuerier marks calls made inside RunInTx, where the write lock is already held.
type txQuerier struct{}

// plainQuerier marks calls made outside a transaction.
type plainQuerier struct{}

func (txQuerier) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errNoSQL
}

func (txQuerier) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (txQuerier) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func (plainQuerier) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errNoSQL
}

func (plainQuerier) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (plainQuerier) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func (s *Store) Querier() domain.Querier {
	return plainQuerier{}
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, q domain.Querier) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if r := recover(); r != nil {
			s.data = snapshot
			panic(r)
		}
	}()

	if err := fn(ctx, txQuerier{}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) view(ctx context.Context, q domain.Querier, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, inTx := q.(txQuerier); inTx {
		return fn(s.data)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.data)
}

func (s *Store) update(ctx context.Context, q domain.Querier, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, inTx := q.(txQuerier); inTx {
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}
