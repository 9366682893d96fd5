package game

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"go.uber.org/zap"
)

type Challenge struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	BannerURL   string `json:"banner_url"`
	RulesURL    string `json:"rules_url"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	RewardXP    int64  `json:"reward_xp"`
}

// ActiveChallenges lists challenges flagged active whose window contains at,
// earliest start first. Dates are compared as RFC 3339 UTC text.
func (s *Service) ActiveChallenges(ctx context.Context, at time.Time) ([]Challenge, error) {
	now := at.UTC().Format(time.RFC3339)
	q := s.qb().
		Select("id", "name", "description", "banner_url", "rules_url", "start_date", "end_date", "COALESCE(reward_xp, 0)").
		From("challenges").
		Where(squirrel.Eq{"is_active": 1}).
		Where(squirrel.LtOrEq{"start_date": now}).
		Where(squirrel.GtOrEq{"end_date": now}).
		OrderBy("start_date ASC", "id ASC")
	rows, err := s.query(ctx, s.db, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	out := make([]Challenge, 0)
	for rows.Next() {
		var c Challenge
		var desc, banner, rules sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &desc, &banner, &rules, &c.StartDate, &c.EndDate, &c.RewardXP); err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		c.Description, c.BannerURL, c.RulesURL = desc.String, banner.String, rules.String
		out = append(out, c)
	}
	return out, rows.Err()
}

type Participation struct {
	ID            int64  `json:"id"`
	ChallengeID   int64  `json:"challenge_id"`
	ChallengeName string `json:"challenge_name,omitempty"`
	UserID        int64  `json:"user_id"`
	Progress      int64  `json:"progress"`
	Status        string `json:"status"`
	JoinedAt      string `json:"joined_at"`
}

// JoinChallenge enrolls the user with email in challengeID. A user can join
// a challenge once.
func (s *Service) JoinChallenge(ctx context.Context, email string, challengeID int64) (*Participation, error) {
	var p *Participation
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		uid, err := s.userID(ctx, tx, email)
		if err != nil {
			return err
		}

		var id int64
		found, err := exists(s.queryRow(ctx, tx, s.qb().Select("id").From("challenges").Where(squirrel.Eq{"id": challengeID}), &id))
		if err != nil {
			return fmt.Errorf("failed to load challenge: %w", err)
		}
		if !found {
			return ErrChallengeNotFound
		}

		joined, err := exists(s.queryRow(ctx, tx, s.qb().Select("id").From("challenge_participations").
			Where(squirrel.Eq{"challenge_id": challengeID, "user_id": uid}).Limit(1), &id))
		if err != nil {
			return fmt.Errorf("failed to check participation: %w", err)
		}
		if joined {
			return ErrAlreadyJoined
		}

		now := s.stamp()
		id, err = s.insert(ctx, tx, s.qb().Insert("challenge_participations").
			Columns("challenge_id", "user_id", "progress", "status", "joined_at", "created_at", "updated_at").
			Values(challengeID, uid, 0, "joined", now, now, now))
		if err != nil {
			return fmt.Errorf("failed to join challenge: %w", err)
		}
		p = &Participation{ID: id, ChallengeID: challengeID, UserID: uid, Status: "joined", JoinedAt: now}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("challenge joined", zap.Int64("challenge_id", challengeID), zap.Int64("user_id", p.UserID))
	return p, nil
}

// Participations lists the challenges the user with email has joined. An
// unknown user has none.
func (s *Service) Participations(ctx context.Context, email string) ([]Participation, error) {
	uid, err := s.userID(ctx, s.db, email)
	if errors.Is(err, ErrUserNotFound) {
		return []Participation{}, nil
	}
	if err != nil {
		return nil, err
	}

	q := s.qb().
		Select("cp.id", "cp.challenge_id", "c.name", "cp.user_id", "COALESCE(cp.progress, 0)", "cp.status", "cp.joined_at").
		From("challenge_participations cp").
		Join("challenges c ON cp.challenge_id = c.id").
		Where(squirrel.Eq{"cp.user_id": uid}).
		OrderBy("cp.id ASC")
	rows, err := s.query(ctx, s.db, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list participations: %w", err)
	}
	defer rows.Close()

	out := make([]Participation, 0)
	for rows.Next() {
		var p Participation
		var status, joined sql.NullString
		if err := rows.Scan(&p.ID, &p.ChallengeID, &p.ChallengeName, &p.UserID, &p.Progress, &status, &joined); err != nil {
			return nil, fmt.Errorf("failed to scan participation: %w", err)
		}
		p.Status, p.JoinedAt = status.String, joined.String
		out = append(out, p)
	}
	return out, rows.Err()
}

const challengeBoardSize = 10

type ChallengeScore struct {
	UserID    int64   `json:"user_id"`
	UserEmail string  `json:"user_email"`
	UserName  string  `json:"user_name"`
	Score     float64 `json:"score"`
}

// ChallengeLeaderboard returns the top ten scores of one challenge.
func (s *Service) ChallengeLeaderboard(ctx context.Context, challengeID int64) ([]ChallengeScore, error) {
	q := s.qb().
		Select("cl.user_id", "u.email", "u.name", "COALESCE(cl.score, 0)").
		From("challenge_leaderboard cl").
		Join("users u ON cl.user_id = u.id").
		Where(squirrel.Eq{"cl.challenge_id": challengeID}).
		OrderBy("cl.score DESC", "cl.user_id ASC").
		Limit(challengeBoardSize)
	rows, err := s.query(ctx, s.db, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge leaderboard: %w", err)
	}
	defer rows.Close()

	out := make([]ChallengeScore, 0)
	for rows.Next() {
		var c ChallengeScore
		var name sql.NullString
		if err := rows.Scan(&c.UserID, &c.UserEmail, &name, &c.Score); err != nil {
			return nil, fmt.Errorf("failed to scan challenge score: %w", err)
		}
		c.UserName = name.String
		out = append(out, c)
	}
	return out, rows.Err()
}
