package game

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
)

const DefaultLeaderboardSize = 50

type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	UserID        int64  `json:"user_id"`
	UserEmail     string `json:"user_email"`
	UserName      string `json:"user_name"`
	TotalScore    int64  `json:"total_score"`
	IsCurrentUser bool   `json:"is_current_user"`
}

// Leaderboard returns the top scores. The entry belonging to email, if any,
// is flagged as the current user.
func (s *Service) Leaderboard(ctx context.Context, email string, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > DefaultLeaderboardSize {
		limit = DefaultLeaderboardSize
	}
	q := s.qb().
		Select("l.user_id", "u.email", "u.name", "COALESCE(l.total_score, 0)").
		From("leaderboard_scores l").
		Join("users u ON l.user_id = u.id").
		OrderBy("l.total_score DESC", "l.user_id ASC").
		Limit(uint64(limit))
	rows, err := s.query(ctx, s.db, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	defer rows.Close()

	email = strings.TrimSpace(email)
	entries := make([]LeaderboardEntry, 0)
	for rows.Next() {
		var e LeaderboardEntry
		var name sql.NullString
		if err := rows.Scan(&e.UserID, &e.UserEmail, &name, &e.TotalScore); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		e.UserName = name.String
		e.Rank = len(entries) + 1
		e.IsCurrentUser = email != "" && strings.EqualFold(e.UserEmail, email)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// refreshScore sets the user's leaderboard score to the sum of their pets' XP.
func (s *Service) refreshScore(ctx context.Context, r runner, userID int64, now string) error {
	var total int64
	sum := s.qb().Select("COALESCE(SUM(total_xp), 0)").From("pets").Where(squirrel.Eq{"owner_user_id": userID})
	if err := s.queryRow(ctx, r, sum, &total); err != nil {
		return fmt.Errorf("failed to sum pet xp: %w", err)
	}

	var id int64
	lookup := s.qb().Select("id").From("leaderboard_scores").Where(squirrel.Eq{"user_id": userID}).Limit(1)
	err := s.queryRow(ctx, r, lookup, &id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to load leaderboard score: %w", err)
	}

	if err == nil {
		update := s.qb().Update("leaderboard_scores").
			Set("total_score", total).
			Set("last_updated", now).
			Set("updated_at", now).
			Where(squirrel.Eq{"id": id})
		if _, err := s.exec(ctx, r, update); err != nil {
			return fmt.Errorf("failed to update leaderboard score: %w", err)
		}
		return nil
	}

	insert := s.qb().Insert("leaderboard_scores").
		Columns("user_id", "total_score", "last_updated", "created_at", "updated_at").
		Values(userID, total, now, now, now)
	if _, err := s.exec(ctx, r, insert); err != nil {
		return fmt.Errorf("failed to insert leaderboard score: %w", err)
	}
	return nil
}
