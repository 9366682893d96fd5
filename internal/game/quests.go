package game

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"go.uber.org/zap"
)

// Completion is the outcome of completing a quest.
type Completion struct {
	XPEarned int64 `json:"xpEarned"`
	NewLevel int64 `json:"newLevel"`
	TotalXP  int64 `json:"total_xp"`
	Coins    int64 `json:"coins"`
}

// CompleteQuest logs questID as done for petID and credits the quest's XP to
// the pet as both XP and coins. The pet's level and its owner's leaderboard
// score are recomputed in the same transaction.
func (s *Service) CompleteQuest(ctx context.Context, email string, petID, questID int64) (*Completion, error) {
	out := &Completion{}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		uid, err := s.userID(ctx, tx, email)
		if err != nil {
			return err
		}

		var owner sql.NullInt64
		q := s.qb().Select("owner_user_id").From("pets").Where(squirrel.Eq{"id": petID})
		if err := s.queryRow(ctx, tx, q, &owner); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrPetNotOwned
			}
			return fmt.Errorf("failed to load pet: %w", err)
		}
		if !owner.Valid || owner.Int64 != uid {
			return ErrPetNotOwned
		}

		var xp sql.NullInt64
		q = s.qb().Select("xp_value").From("quests").Where(squirrel.Eq{"id": questID})
		if err := s.queryRow(ctx, tx, q, &xp); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrQuestNotFound
			}
			return fmt.Errorf("failed to load quest: %w", err)
		}
		out.XPEarned = xp.Int64

		now := s.stamp()
		logRow := s.qb().Insert("quest_logs").
			Columns("pet_id", "quest_id", "completion_date", "status", "created_at", "updated_at").
			Values(petID, questID, now, "done", now, now)
		if _, err := s.exec(ctx, tx, logRow); err != nil {
			return fmt.Errorf("failed to log quest: %w", err)
		}

		credit := s.qb().Update("pets").
			Set("total_xp", squirrel.Expr("COALESCE(total_xp, 0) + ?", out.XPEarned)).
			Set("coins", squirrel.Expr("COALESCE(coins, 0) + ?", out.XPEarned)).
			Set("updated_at", now).
			Where(squirrel.Eq{"id": petID})
		if _, err := s.exec(ctx, tx, credit); err != nil {
			return fmt.Errorf("failed to credit pet: %w", err)
		}

		q = s.qb().Select("COALESCE(total_xp, 0)", "COALESCE(coins, 0)").From("pets").Where(squirrel.Eq{"id": petID})
		if err := s.queryRow(ctx, tx, q, &out.TotalXP, &out.Coins); err != nil {
			return fmt.Errorf("failed to reload pet: %w", err)
		}
		out.NewLevel = Level(out.TotalXP)

		level := s.qb().Update("pets").Set("level", out.NewLevel).Where(squirrel.Eq{"id": petID})
		if _, err := s.exec(ctx, tx, level); err != nil {
			return fmt.Errorf("failed to update level: %w", err)
		}

		return s.refreshScore(ctx, tx, uid, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("quest completed",
		zap.Int64("pet_id", petID),
		zap.Int64("quest_id", questID),
		zap.Int64("xp", out.XPEarned),
		zap.Int64("level", out.NewLevel))
	return out, nil
}

type QuestLog struct {
	ID             int64  `json:"id"`
	PetID          int64  `json:"pet_id"`
	QuestID        int64  `json:"quest_id"`
	QuestName      string `json:"quest_name"`
	XPValue        int64  `json:"xp_value"`
	CompletionDate string `json:"completion_date"`
	Status         string `json:"status"`
}

// QuestLogs lists a pet's completions, newest first.
func (s *Service) QuestLogs(ctx context.Context, petID int64) ([]QuestLog, error) {
	q := s.qb().
		Select("ql.id", "ql.pet_id", "ql.quest_id", "q.name", "COALESCE(q.xp_value, 0)", "ql.completion_date", "ql.status").
		From("quest_logs ql").
		Join("quests q ON ql.quest_id = q.id").
		Where(squirrel.Eq{"ql.pet_id": petID}).
		OrderBy("ql.completion_date DESC", "ql.id DESC")
	rows, err := s.query(ctx, s.db, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list quest logs: %w", err)
	}
	defer rows.Close()

	logs := make([]QuestLog, 0)
	for rows.Next() {
		var l QuestLog
		var date, status sql.NullString
		if err := rows.Scan(&l.ID, &l.PetID, &l.QuestID, &l.QuestName, &l.XPValue, &date, &status); err != nil {
			return nil, fmt.Errorf("failed to scan quest log: %w", err)
		}
		l.CompletionDate, l.Status = date.String, status.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
