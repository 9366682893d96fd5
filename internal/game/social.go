package game

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"go.uber.org/zap"
)

const (
	FriendPending  = "pending"
	FriendAccepted = "accepted"
	FriendRejected = "rejected"
)

type Friend struct {
	ID         int64  `json:"id"`
	Email      string `json:"user_email"`
	Name       string `json:"user_name"`
	Picture    string `json:"user_picture"`
	TotalScore int64  `json:"total_score"`
}

type FriendRequest struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	FriendID  int64  `json:"friend_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// Friends lists the users with an accepted friendship in either direction,
// with their leaderboard score.
func (s *Service) Friends(ctx context.Context, email string) ([]Friend, error) {
	uid, err := s.userID(ctx, s.db, email)
	if errors.Is(err, ErrUserNotFound) {
		return []Friend{}, nil
	}
	if err != nil {
		return nil, err
	}

	other := squirrel.Expr("CASE WHEN f.user_id = ? THEN f.friend_id ELSE f.user_id END", uid)
	ids := s.qb().Select().Column(other).From("friendships f").
		Where(squirrel.Or{squirrel.Eq{"f.user_id": uid}, squirrel.Eq{"f.friend_id": uid}}).
		Where(squirrel.Eq{"f.status": FriendAccepted})

	q := s.qb().
		Select("u.id", "u.email", "u.name", "u.picture", "COALESCE(l.total_score, 0)").
		From("users u").
		LeftJoin("leaderboard_scores l ON u.id = l.user_id").
		Where(squirrel.Expr("u.id IN (?)", ids)).
		OrderBy("u.id ASC")
	rows, err := s.query(ctx, s.db, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	defer rows.Close()

	out := make([]Friend, 0)
	for rows.Next() {
		var f Friend
		var name, picture sql.NullString
		if err := rows.Scan(&f.ID, &f.Email, &name, &picture, &f.TotalScore); err != nil {
			return nil, fmt.Errorf("failed to scan friend: %w", err)
		}
		f.Name, f.Picture = name.String, picture.String
		out = append(out, f)
	}
	return out, rows.Err()
}

// PendingRequests lists the requests waiting on the user with email.
func (s *Service) PendingRequests(ctx context.Context, email string) ([]FriendRequest, error) {
	uid, err := s.userID(ctx, s.db, email)
	if errors.Is(err, ErrUserNotFound) {
		return []FriendRequest{}, nil
	}
	if err != nil {
		return nil, err
	}

	q := s.qb().Select("id", "user_id", "friend_id", "status", "created_at").
		From("friendships").
		Where(squirrel.Eq{"friend_id": uid, "status": FriendPending}).
		OrderBy("id ASC")
	rows, err := s.query(ctx, s.db, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list friend requests: %w", err)
	}
	defer rows.Close()

	out := make([]FriendRequest, 0)
	for rows.Next() {
		var r FriendRequest
		var created sql.NullString
		if err := rows.Scan(&r.ID, &r.UserID, &r.FriendID, &r.Status, &created); err != nil {
			return nil, fmt.Errorf("failed to scan friend request: %w", err)
		}
		r.CreatedAt = created.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddFriend sends a pending request from the user with email to friendID.
// Only one friendship may exist between two users, whichever side asked.
func (s *Service) AddFriend(ctx context.Context, email string, friendID int64) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		uid, err := s.userID(ctx, tx, email)
		if err != nil {
			return err
		}
		if uid == friendID {
			return ErrSelfFriendship
		}

		var existing int64
		found, err := exists(s.queryRow(ctx, tx, s.qb().Select("id").From("friendships").
			Where(squirrel.Or{
				squirrel.Eq{"user_id": uid, "friend_id": friendID},
				squirrel.Eq{"user_id": friendID, "friend_id": uid},
			}).Limit(1), &existing))
		if err != nil {
			return fmt.Errorf("failed to check friendship: %w", err)
		}
		if found {
			return ErrFriendshipExists
		}

		var target int64
		found, err = exists(s.queryRow(ctx, tx, s.qb().Select("id").From("users").Where(squirrel.Eq{"id": friendID}), &target))
		if err != nil {
			return fmt.Errorf("failed to look up user: %w", err)
		}
		if !found {
			return ErrUserNotFound
		}

		now := s.stamp()
		id, err = s.insert(ctx, tx, s.qb().Insert("friendships").
			Columns("user_id", "friend_id", "status", "created_at", "updated_at").
			Values(uid, friendID, FriendPending, now, now))
		if err != nil {
			return fmt.Errorf("failed to add friend: %w", err)
		}
		return nil
	})
	return id, err
}

// RespondFriend accepts or rejects a pending request addressed to the user
// with email.
func (s *Service) RespondFriend(ctx context.Context, email string, friendshipID int64, accept bool) error {
	status := FriendRejected
	if accept {
		status = FriendAccepted
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		uid, err := s.userID(ctx, tx, email)
		if err != nil {
			return err
		}
		res, err := s.exec(ctx, tx, s.qb().Update("friendships").
			Set("status", status).
			Set("updated_at", s.stamp()).
			Where(squirrel.Eq{"id": friendshipID, "friend_id": uid, "status": FriendPending}))
		if err != nil {
			return fmt.Errorf("failed to update friendship: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to update friendship: %w", err)
		}
		if n == 0 {
			return ErrFriendshipNotFound
		}
		s.logger.Info("friend request answered", zap.Int64("friendship_id", friendshipID), zap.String("status", status))
		return nil
	})
}

type UserSummary struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

const searchLimit = 20

// SearchUsers matches term against email and name, leaving out the caller.
func (s *Service) SearchUsers(ctx context.Context, email, term string) ([]UserSummary, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []UserSummary{}, nil
	}
	pattern := "%" + strings.ToLower(term) + "%"
	q := s.qb().Select("id", "email", "name").From("users").
		Where(squirrel.Or{
			squirrel.Expr("LOWER(email) LIKE ?", pattern),
			squirrel.Expr("LOWER(name) LIKE ?", pattern),
		}).
		Where("LOWER(email) <> LOWER(?)", strings.TrimSpace(email)).
		OrderBy("id ASC").
		Limit(searchLimit)
	rows, err := s.query(ctx, s.db, q)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	out := make([]UserSummary, 0)
	for rows.Next() {
		var u UserSummary
		var name sql.NullString
		if err := rows.Scan(&u.ID, &u.Email, &name); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Name = name.String
		out = append(out, u)
	}
	return out, rows.Err()
}

type Message struct {
	ID             int64  `json:"id"`
	SenderUserID   int64  `json:"sender_user_id"`
	ReceiverUserID int64  `json:"receiver_user_id"`
	Content        string `json:"content"`
	IsRead         bool   `json:"is_read"`
	CreatedAt      string `json:"created_at"`
	IsSender       bool   `json:"is_sender"`
}

// Messages returns the conversation between the user with email and
// friendID, oldest first.
func (s *Service) Messages(ctx context.Context, email string, friendID int64) ([]Message, error) {
	uid, err := s.userID(ctx, s.db, email)
	if errors.Is(err, ErrUserNotFound) {
		return []Message{}, nil
	}
	if err != nil {
		return nil, err
	}

	q := s.qb().Select("id", "sender_user_id", "receiver_user_id", "content", "COALESCE(is_read, 0)", "created_at").
		From("messages").
		Where(squirrel.Or{
			squirrel.Eq{"sender_user_id": uid, "receiver_user_id": friendID},
			squirrel.Eq{"sender_user_id": friendID, "receiver_user_id": uid},
		}).
		OrderBy("created_at ASC", "id ASC")
	rows, err := s.query(ctx, s.db, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		var m Message
		var read int64
		var created sql.NullString
		if err := rows.Scan(&m.ID, &m.SenderUserID, &m.ReceiverUserID, &m.Content, &read, &created); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.IsRead = read != 0
		m.CreatedAt = created.String
		m.IsSender = m.SenderUserID == uid
		out = append(out, m)
	}
	return out, rows.Err()
}

// SendMessage stores an unread message from the user with email.
func (s *Service) SendMessage(ctx context.Context, email string, receiverID int64, content string) (*Message, error) {
	if receiverID <= 0 || strings.TrimSpace(content) == "" {
		return nil, ErrMessageInvalid
	}
	uid, err := s.userID(ctx, s.db, email)
	if err != nil {
		return nil, err
	}

	now := s.stamp()
	id, err := s.insert(ctx, s.db, s.qb().Insert("messages").
		Columns("sender_user_id", "receiver_user_id", "content", "is_read", "created_at", "updated_at").
		Values(uid, receiverID, content, 0, now, now))
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return &Message{
		ID:             id,
		SenderUserID:   uid,
		ReceiverUserID: receiverID,
		Content:        content,
		CreatedAt:      now,
		IsSender:       true,
	}, nil
}
