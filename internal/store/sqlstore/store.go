// Package sqlstore persists contacts in a relational database through sqlx.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"

	"gitlab.com/dirk.krummacker/identity-service/internal/apperror"
	"gitlab.com/dirk.krummacker/identity-service/internal/model"
	"gitlab.com/dirk.krummacker/identity-service/internal/reconcile"
)

const selectContact = `
	SELECT id, phone_number, email, linked_id, link_precedence, created_at, updated_at, deleted_at
	FROM contacts`

const (
	findByEmail = selectContact + `
	WHERE email = ? AND deleted_at IS NULL
	ORDER BY link_precedence ASC, created_at ASC, id ASC
	LIMIT 1`

	findByPhone = selectContact + `
	WHERE phone_number = ? AND deleted_at IS NULL
	ORDER BY link_precedence ASC, created_at ASC, id ASC
	LIMIT 1`

	findExact = selectContact + `
	WHERE email = ? AND phone_number = ? AND deleted_at IS NULL
	ORDER BY link_precedence ASC, created_at ASC, id ASC
	LIMIT 1`

	fetchById = selectContact + `
	WHERE id = ? AND deleted_at IS NULL`

	listSecondaries = selectContact + `
	WHERE linked_id = ? AND deleted_at IS NULL
	ORDER BY created_at ASC, id ASC`

	insertContact = `
	INSERT INTO contacts (phone_number, email, linked_id, link_precedence, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	demoteContact = `
	UPDATE contacts SET link_precedence = ?, linked_id = ?, updated_at = ?
	WHERE id = ?`

	repointContacts = `
	UPDATE contacts SET linked_id = ?, updated_at = ?
	WHERE linked_id = ?`
)

// Store implements reconcile.ContactStore and reconcile.Transactor on top of an sqlx database.
type Store struct {
	db          *sqlx.DB
	q           sqlx.ExtContext
	dialect     dialect
	clock       func() time.Time
	readRetries uint64
	inTx        bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source for created/updated timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithReadRetries sets how often a failed lookup is repeated. Writes are never repeated.
func WithReadRetries(n uint64) Option {
	return func(s *Store) {
		s.readRetries = n
	}
}

// New creates a Store for db. The SQL dialect is derived from db.DriverName().
func New(db *sqlx.DB, opts ...Option) (*Store, error) {
	d, err := dialectFor(db.DriverName())
	if err != nil {
		return nil, err
	}
	s := &Store{
		db:          db,
		q:           db,
		dialect:     d,
		clock:       func() time.Time { return time.Now().UTC() },
		readRetries: 2,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// read runs a read-only operation, repeating it with exponential backoff if it fails. Reads
// inside a transaction are not repeated since the transaction is likely broken.
func (s *Store) read(ctx context.Context, op func() error) error {
	if s.inTx || s.readRetries == 0 {
		return op()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	return backoff.Retry(func() error {
		err := op()
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, s.readRetries), ctx))
}

// findOne returns the first contact selected by query, or nil if there is none.
func (s *Store) findOne(ctx context.Context, query string, args ...any) (*model.Contact, error) {
	var contact model.Contact
	found := false
	err := s.read(ctx, func() error {
		err := sqlx.GetContext(ctx, s.q, &contact, s.q.Rebind(query), args...)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &contact, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*model.Contact, error) {
	c, err := s.findOne(ctx, findByEmail, email)
	if err != nil {
		return nil, fmt.Errorf("select contact by email: %w", err)
	}
	return c, nil
}

func (s *Store) FindByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	c, err := s.findOne(ctx, findByPhone, phone)
	if err != nil {
		return nil, fmt.Errorf("select contact by phone number: %w", err)
	}
	return c, nil
}

func (s *Store) FindExact(ctx context.Context, email, phone string) (*model.Contact, error) {
	c, err := s.findOne(ctx, findExact, email, phone)
	if err != nil {
		return nil, fmt.Errorf("select contact by email and phone number: %w", err)
	}
	return c, nil
}

func (s *Store) FetchByID(ctx context.Context, id int64) (model.Contact, error) {
	c, err := s.findOne(ctx, fetchById, id)
	if err != nil {
		return model.Contact{}, fmt.Errorf("select contact %d: %w", id, err)
	}
	if c == nil {
		return model.Contact{}, apperror.NotFound("contact %d not found", id)
	}
	return *c, nil
}

func (s *Store) ListSecondariesOf(ctx context.Context, primaryId int64) ([]model.Contact, error) {
	var contacts []model.Contact
	err := s.read(ctx, func() error {
		contacts = contacts[:0]
		return sqlx.SelectContext(ctx, s.q, &contacts, s.q.Rebind(listSecondaries), primaryId)
	})
	if err != nil {
		return nil, fmt.Errorf("select secondaries of %d: %w", primaryId, err)
	}
	return contacts, nil
}

func (s *Store) InsertPrimary(ctx context.Context, email, phone *string) (model.Contact, error) {
	return s.insert(ctx, email, phone, model.Primary, nil)
}

func (s *Store) InsertSecondary(ctx context.Context, email, phone *string, linkedId int64) (model.Contact, error) {
	return s.insert(ctx, email, phone, model.Secondary, &linkedId)
}

func (s *Store) insert(ctx context.Context, email, phone *string, precedence model.LinkPrecedence, linkedId *int64) (model.Contact, error) {
	now := s.clock().Truncate(time.Microsecond)
	contact := model.Contact{
		Email:          email,
		Phone:          phone,
		LinkedId:       linkedId,
		LinkPrecedence: precedence,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	args := []any{phone, email, linkedId, string(precedence), now, now}

	if s.dialect.returning {
		query := s.q.Rebind(insertContact + " RETURNING id")
		if err := sqlx.GetContext(ctx, s.q, &contact.Id, query, args...); err != nil {
			return model.Contact{}, fmt.Errorf("insert %s contact: %w", precedence, err)
		}
		return contact, nil
	}

	result, err := s.q.ExecContext(ctx, s.q.Rebind(insertContact), args...)
	if err != nil {
		return model.Contact{}, fmt.Errorf("insert %s contact: %w", precedence, err)
	}
	contact.Id, err = result.LastInsertId()
	if err != nil {
		return model.Contact{}, fmt.Errorf("read id of inserted contact: %w", err)
	}
	return contact, nil
}

func (s *Store) DemoteToSecondary(ctx context.Context, id, newPrimaryId int64) error {
	result, err := s.q.ExecContext(ctx, s.q.Rebind(demoteContact),
		string(model.Secondary), newPrimaryId, s.clock().Truncate(time.Microsecond), id)
	if err != nil {
		return fmt.Errorf("demote contact %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("demote contact %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("contact %d not found", id)
	}
	return nil
}

func (s *Store) RepointSecondaries(ctx context.Context, oldPrimaryId, newPrimaryId int64) error {
	_, err := s.q.ExecContext(ctx, s.q.Rebind(repointContacts),
		newPrimaryId, s.clock().Truncate(time.Microsecond), oldPrimaryId)
	if err != nil {
		return fmt.Errorf("repoint secondaries of %d: %w", oldPrimaryId, err)
	}
	return nil
}

// InTx runs fn inside a database transaction. The transaction is committed if fn succeeds and
// rolled back otherwise. Calls on a store that is already inside a transaction join it.
func (s *Store) InTx(ctx context.Context, fn func(reconcile.ContactStore) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	txStore := *s
	txStore.q = tx
	txStore.inTx = true
	if err := fn(&txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback transaction: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
