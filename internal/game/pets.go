package game

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

var (
	ErrPetInvalid     = errors.New("Pet name required")
	ErrSpeciesInvalid = errors.New("Unknown species")
	ErrQuestInvalid   = errors.New("Quest name required")
	ErrCadenceInvalid = errors.New("Quest type must be daily, weekly or custom")
)

var species = map[string]bool{"dog": true, "cat": true, "bird": true, "rabbit": true, "other": true}

var cadences = map[string]bool{"daily": true, "weekly": true, "custom": true}

// questPolicy keeps player written descriptions to safe inline markup.
var questPolicy = bluemonday.UGCPolicy()

const (
	DefaultSpecies  = "dog"
	DefaultCadence  = "daily"
	DefaultQuestXP  = 10
	defaultUserName = "User"
)

type Pet struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Species     string `json:"species"`
	AvatarURL   string `json:"avatar_url"`
	Level       int64  `json:"level"`
	TotalXP     int64  `json:"total_xp"`
	Coins       int64  `json:"coins"`
	OwnerUserID int64  `json:"owner_user_id"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// PetInput is what a player may set on their own pet. Progress columns
// only move through quest completion.
type PetInput struct {
	Name      string `json:"name"`
	Species   string `json:"species"`
	AvatarURL string `json:"avatar_url"`
}

func (in PetInput) normalize() (PetInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Species = strings.ToLower(strings.TrimSpace(in.Species))
	in.AvatarURL = strings.TrimSpace(in.AvatarURL)
	if in.Name == "" {
		return in, ErrPetInvalid
	}
	if in.Species == "" {
		in.Species = DefaultSpecies
	}
	if !species[in.Species] {
		return in, ErrSpeciesInvalid
	}
	return in, nil
}

var petColumns = []string{
	"id", "name", "species", "avatar_url",
	"COALESCE(level, 1)", "COALESCE(total_xp, 0)", "COALESCE(coins, 0)",
	"owner_user_id", "created_at", "updated_at",
}

func scanPet(row interface{ Scan(...interface{}) error }) (Pet, error) {
	var p Pet
	var kind, avatar, created, updated sql.NullString
	err := row.Scan(&p.ID, &p.Name, &kind, &avatar, &p.Level, &p.TotalXP, &p.Coins, &p.OwnerUserID, &created, &updated)
	p.Species, p.AvatarURL = kind.String, avatar.String
	p.CreatedAt, p.UpdatedAt = created.String, updated.String
	return p, err
}

// Pets lists the pets of the user with email. A user with no local row has
// no pets yet.
func (s *Service) Pets(ctx context.Context, email string) ([]Pet, error) {
	uid, err := s.userID(ctx, s.db, email)
	if errors.Is(err, ErrUserNotFound) {
		return []Pet{}, nil
	}
	if err != nil {
		return nil, err
	}

	q := s.qb().Select(petColumns...).From("pets").Where(squirrel.Eq{"owner_user_id": uid}).OrderBy("id ASC")
	rows, err := s.query(ctx, s.db, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list pets: %w", err)
	}
	defer rows.Close()

	pets := make([]Pet, 0)
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pet: %w", err)
		}
		pets = append(pets, p)
	}
	return pets, rows.Err()
}

// CreatePet registers a new level 1 pet for the user with email, creating
// the local user row on their first pet.
func (s *Service) CreatePet(ctx context.Context, email, name string, in PetInput) (*Pet, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	var pet *Pet
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		uid, err := s.ensureUser(ctx, tx, email, name)
		if err != nil {
			return err
		}
		now := s.stamp()
		insert := s.qb().Insert("pets").
			Columns("name", "species", "avatar_url", "level", "total_xp", "coins", "owner_user_id", "created_at", "updated_at").
			Values(in.Name, in.Species, in.AvatarURL, 1, 0, 0, uid, now, now)
		id, err := s.insert(ctx, tx, insert)
		if err != nil {
			return fmt.Errorf("failed to create pet: %w", err)
		}
		pet, err = s.ownedPet(ctx, tx, uid, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("pet created", zap.Int64("pet_id", pet.ID), zap.Int64("owner", pet.OwnerUserID))
	return pet, nil
}

// UpdatePet renames a pet or changes its avatar and species. The owner's
// leaderboard score is recomputed with it.
func (s *Service) UpdatePet(ctx context.Context, email string, petID int64, in PetInput) (*Pet, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	var pet *Pet
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		uid, err := s.userID(ctx, tx, email)
		if err != nil {
			return err
		}
		if _, err := s.ownedPet(ctx, tx, uid, petID); err != nil {
			return err
		}
		now := s.stamp()
		update := s.qb().Update("pets").
			Set("name", in.Name).
			Set("species", in.Species).
			Set("avatar_url", in.AvatarURL).
			Set("updated_at", now).
			Where(squirrel.Eq{"id": petID})
		if _, err := s.exec(ctx, tx, update); err != nil {
			return fmt.Errorf("failed to update pet: %w", err)
		}
		if err := s.refreshScore(ctx, tx, uid, now); err != nil {
			return err
		}
		pet, err = s.ownedPet(ctx, tx, uid, petID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pet, nil
}

// DeletePet removes a pet with its quest history and takes its XP off the
// owner's score.
func (s *Service) DeletePet(ctx context.Context, email string, petID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		uid, err := s.userID(ctx, tx, email)
		if err != nil {
			return err
		}
		if _, err := s.ownedPet(ctx, tx, uid, petID); err != nil {
			return err
		}
		if _, err := s.exec(ctx, tx, s.qb().Delete("quest_logs").Where(squirrel.Eq{"pet_id": petID})); err != nil {
			return fmt.Errorf("failed to delete quest logs: %w", err)
		}
		if _, err := s.exec(ctx, tx, s.qb().Delete("pets").Where(squirrel.Eq{"id": petID})); err != nil {
			return fmt.Errorf("failed to delete pet: %w", err)
		}
		s.logger.Info("pet deleted", zap.Int64("pet_id", petID), zap.Int64("owner", uid))
		return s.refreshScore(ctx, tx, uid, s.stamp())
	})
}

// ownedPet loads petID when it belongs to uid.
func (s *Service) ownedPet(ctx context.Context, r runner, uid, petID int64) (*Pet, error) {
	q := s.qb().Select(petColumns...).From("pets").Where(squirrel.Eq{"id": petID, "owner_user_id": uid})
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	p, err := scanPet(r.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPetNotOwned
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pet: %w", err)
	}
	return &p, nil
}

// ensureUser returns the local user id for email, inserting the row when the
// player has never been seen before.
func (s *Service) ensureUser(ctx context.Context, r runner, email, name string) (int64, error) {
	uid, err := s.userID(ctx, r, email)
	if !errors.Is(err, ErrUserNotFound) {
		return uid, err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return 0, ErrUserNotFound
	}
	if name = strings.TrimSpace(name); name == "" {
		name = defaultUserName
	}
	now := s.stamp()
	insert := s.qb().Insert("users").
		Columns("email", "name", "created_at", "updated_at").
		Values(email, name, now, now)
	uid, err = s.insert(ctx, r, insert)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.Info("user created", zap.Int64("user_id", uid), zap.String("email", email))
	return uid, nil
}

type Quest struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Emoji       string `json:"emoji"`
	Description string `json:"description"`
	Type        string `json:"type"`
	XPValue     int64  `json:"xp_value"`
	IsCustom    bool   `json:"is_custom"`
	CreatedAt   string `json:"created_at"`
}

type QuestInput struct {
	Name        string `json:"name"`
	Emoji       string `json:"emoji"`
	Description string `json:"description"`
	Type        string `json:"type"`
	XPValue     int64  `json:"xp_value"`
}

var questColumns = []string{
	"id", "name", "emoji", "description", "type", "COALESCE(xp_value, 0)", "COALESCE(is_custom, 0)", "created_at",
}

func scanQuest(row interface{ Scan(...interface{}) error }) (Quest, error) {
	var q Quest
	var emoji, desc, kind, created sql.NullString
	var custom int64
	err := row.Scan(&q.ID, &q.Name, &emoji, &desc, &kind, &q.XPValue, &custom, &created)
	q.Emoji, q.Description, q.Type, q.CreatedAt = emoji.String, desc.String, kind.String, created.String
	q.IsCustom = custom != 0
	return q, err
}

// Quests lists every quest, built in and custom.
func (s *Service) Quests(ctx context.Context) ([]Quest, error) {
	rows, err := s.query(ctx, s.db, s.qb().Select(questColumns...).From("quests").OrderBy("id ASC"))
	if err != nil {
		return nil, fmt.Errorf("failed to list quests: %w", err)
	}
	defer rows.Close()

	quests := make([]Quest, 0)
	for rows.Next() {
		q, err := scanQuest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quest: %w", err)
		}
		quests = append(quests, q)
	}
	return quests, rows.Err()
}

// CreateQuest adds a player defined quest. Type defaults to daily and a
// non-positive XP value to DefaultQuestXP.
func (s *Service) CreateQuest(ctx context.Context, in QuestInput) (*Quest, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, ErrQuestInvalid
	}
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	if in.Type == "" {
		in.Type = DefaultCadence
	}
	if !cadences[in.Type] {
		return nil, ErrCadenceInvalid
	}
	if in.XPValue <= 0 {
		in.XPValue = DefaultQuestXP
	}
	in.Description = questPolicy.Sanitize(in.Description)

	now := s.stamp()
	insert := s.qb().Insert("quests").
		Columns("name", "emoji", "description", "type", "xp_value", "is_custom", "created_at", "updated_at").
		Values(in.Name, strings.TrimSpace(in.Emoji), in.Description, in.Type, in.XPValue, 1, now, now)
	id, err := s.insert(ctx, s.db, insert)
	if err != nil {
		return nil, fmt.Errorf("failed to create quest: %w", err)
	}

	q := s.qb().Select(questColumns...).From("quests").Where(squirrel.Eq{"id": id})
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	quest, err := scanQuest(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to reload quest: %w", err)
	}
	s.logger.Info("custom quest created", zap.Int64("quest_id", id), zap.String("name", quest.Name))
	return &quest, nil
}
