package game

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/Rana718/petquest/internal/database/common"
	"github.com/Rana718/petquest/internal/logging"
)

var (
	ErrUserNotFound       = errors.New("User not found")
	ErrPetNotOwned        = errors.New("Pet not found or not owned by you")
	ErrQuestNotFound      = errors.New("Quest not found")
	ErrChallengeNotFound  = errors.New("Challenge not found")
	ErrAlreadyJoined      = errors.New("Already joined this challenge")
	ErrFriendshipExists   = errors.New("Friendship request already exists")
	ErrFriendshipNotFound = errors.New("Friend request not found")
	ErrSelfFriendship     = errors.New("Cannot add yourself as a friend")
	ErrMessageInvalid     = errors.New("Receiver ID and content required")
)

// IsNotFound reports the errors that mean a referenced record is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrQuestNotFound) ||
		errors.Is(err, ErrChallengeNotFound) ||
		errors.Is(err, ErrFriendshipNotFound)
}

// XPPerLevel is how much total XP a pet needs for each level above 1.
const XPPerLevel = 100

// Level is the pet level reached with totalXP.
func Level(totalXP int64) int64 {
	if totalXP < 0 {
		return 1
	}
	return 1 + totalXP/XPPerLevel
}

// Store is the slice of a database adapter the service needs.
type Store interface {
	DB() *sql.DB
	Dialect() common.Dialect
}

// runner is satisfied by both *sql.DB and *sql.Tx.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Service runs the player-facing game operations. Users are identified by
// the email of their resolved identity.
type Service struct {
	db      *sql.DB
	dialect common.Dialect
	now     func() time.Time
	logger  *zap.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = logging.OrNop(l) }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		db:      store.DB(),
		dialect: store.Dialect(),
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) qb() squirrel.StatementBuilderType {
	return s.dialect.Builder()
}

func (s *Service) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func (s *Service) queryRow(ctx context.Context, r runner, q squirrel.Sqlizer, dest ...interface{}) error {
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	s.logger.Debug("query", zap.String("sql", query))
	return r.QueryRowContext(ctx, query, args...).Scan(dest...)
}

func (s *Service) query(ctx context.Context, r runner, q squirrel.Sqlizer) (*sql.Rows, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	s.logger.Debug("query", zap.String("sql", query))
	return r.QueryContext(ctx, query, args...)
}

func (s *Service) exec(ctx context.Context, r runner, q squirrel.Sqlizer) (sql.Result, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	s.logger.Debug("exec", zap.String("sql", query))
	return r.ExecContext(ctx, query, args...)
}

// insert runs q and returns the generated id.
func (s *Service) insert(ctx context.Context, r runner, q squirrel.InsertBuilder) (int64, error) {
	if s.dialect.Returning {
		var id int64
		if err := s.queryRow(ctx, r, q.Suffix("RETURNING id"), &id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := s.exec(ctx, r, q)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// inTx runs fn in a transaction that is committed only when fn succeeds.
func (s *Service) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// userID looks up the local user row for email.
func (s *Service) userID(ctx context.Context, r runner, email string) (int64, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return 0, ErrUserNotFound
	}
	var id int64
	q := s.qb().Select("id").From("users").Where("LOWER(email) = LOWER(?)", email).Limit(1)
	if err := s.queryRow(ctx, r, q, &id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to look up user: %w", err)
	}
	return id, nil
}

func exists(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, err
	}
}
