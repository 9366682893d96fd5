package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Rana718/petquest/internal/auth"
	"github.com/Rana718/petquest/internal/game"
)

func email(c *fiber.Ctx) string {
	if id := auth.FromContext(c); id != nil {
		return id.Email
	}
	return ""
}

func (s *Server) handlePets(c *fiber.Ctx) error {
	pets, err := s.deps.Game.Pets(c.UserContext(), email(c))
	if err != nil {
		return err
	}
	return c.JSON(pets)
}

func (s *Server) handleCreatePet(c *fiber.Ctx) error {
	var in game.PetInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest("Invalid request body")
	}
	var name string
	if id := auth.FromContext(c); id != nil {
		name = id.Name
	}
	pet, err := s.deps.Game.CreatePet(c.UserContext(), email(c), name, in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "pet": pet})
}

func (s *Server) handleUpdatePet(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in game.PetInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest("Invalid request body")
	}
	pet, err := s.deps.Game.UpdatePet(c.UserContext(), email(c), id, in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "pet": pet})
}

func (s *Server) handleDeletePet(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := s.deps.Game.DeletePet(c.UserContext(), email(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleQuests(c *fiber.Ctx) error {
	quests, err := s.deps.Game.Quests(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(quests)
}

func (s *Server) handleCreateQuest(c *fiber.Ctx) error {
	var in game.QuestInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest("Invalid request body")
	}
	quest, err := s.deps.Game.CreateQuest(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "quest": quest})
}

func (s *Server) handleLeaderboard(c *fiber.Ctx) error {
	board, err := s.deps.Game.Leaderboard(c.UserContext(), email(c), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return c.JSON(board)
}

type completeQuestRequest struct {
	PetID   int64 `json:"petId"`
	QuestID int64 `json:"questId"`
}

func (s *Server) handleCompleteQuest(c *fiber.Ctx) error {
	var req completeQuestRequest
	if err := c.BodyParser(&req); err != nil || req.PetID <= 0 || req.QuestID <= 0 {
		return badRequest("petId and questId required")
	}
	done, err := s.deps.Game.CompleteQuest(c.UserContext(), email(c), req.PetID, req.QuestID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "xpEarned": done.XPEarned, "newLevel": done.NewLevel})
}

func (s *Server) handleQuestLogs(c *fiber.Ctx) error {
	petID, err := queryID(c, "petId", "Pet ID required")
	if err != nil {
		return err
	}
	logs, err := s.deps.Game.QuestLogs(c.UserContext(), petID)
	if err != nil {
		return err
	}
	return c.JSON(logs)
}

func (s *Server) handleChallenges(c *fiber.Ctx) error {
	challenges, err := s.deps.Game.ActiveChallenges(c.UserContext(), s.deps.Now())
	if err != nil {
		return err
	}
	return c.JSON(challenges)
}

type joinChallengeRequest struct {
	ChallengeID int64 `json:"challenge_id"`
}

func (s *Server) handleJoinChallenge(c *fiber.Ctx) error {
	var req joinChallengeRequest
	if err := c.BodyParser(&req); err != nil || req.ChallengeID <= 0 {
		return badRequest("challenge_id required")
	}
	p, err := s.deps.Game.JoinChallenge(c.UserContext(), email(c), req.ChallengeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "participation": p})
}

func (s *Server) handleParticipations(c *fiber.Ctx) error {
	list, err := s.deps.Game.Participations(c.UserContext(), email(c))
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (s *Server) handleChallengeLeaderboard(c *fiber.Ctx) error {
	id, err := pathID(c, "challengeId")
	if err != nil {
		return err
	}
	board, err := s.deps.Game.ChallengeLeaderboard(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(board)
}

func (s *Server) handleFriends(c *fiber.Ctx) error {
	friends, err := s.deps.Game.Friends(c.UserContext(), email(c))
	if err != nil {
		return err
	}
	return c.JSON(friends)
}

func (s *Server) handlePendingFriends(c *fiber.Ctx) error {
	pending, err := s.deps.Game.PendingRequests(c.UserContext(), email(c))
	if err != nil {
		return err
	}
	return c.JSON(pending)
}

type addFriendRequest struct {
	FriendID int64 `json:"friend_id"`
}

func (s *Server) handleAddFriend(c *fiber.Ctx) error {
	var req addFriendRequest
	if err := c.BodyParser(&req); err != nil || req.FriendID <= 0 {
		return badRequest("friend_id required")
	}
	id, err := s.deps.Game.AddFriend(c.UserContext(), email(c), req.FriendID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "id": id})
}

type respondFriendRequest struct {
	FriendshipID int64 `json:"friendship_id"`
}

func (s *Server) handleRespondFriend(accept bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req respondFriendRequest
		if err := c.BodyParser(&req); err != nil || req.FriendshipID <= 0 {
			return badRequest("friendship_id required")
		}
		if err := s.deps.Game.RespondFriend(c.UserContext(), email(c), req.FriendshipID, accept); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true})
	}
}

func (s *Server) handleSearchUsers(c *fiber.Ctx) error {
	users, err := s.deps.Game.SearchUsers(c.UserContext(), email(c), c.Query("q"))
	if err != nil {
		return err
	}
	return c.JSON(users)
}

func (s *Server) handleMessages(c *fiber.Ctx) error {
	friendID, err := queryID(c, "friend_id", "Friend ID required")
	if err != nil {
		return err
	}
	msgs, err := s.deps.Game.Messages(c.UserContext(), email(c), friendID)
	if err != nil {
		return err
	}
	return c.JSON(msgs)
}

type sendMessageRequest struct {
	ReceiverUserID int64  `json:"receiver_user_id"`
	Content        string `json:"content"`
}

func (s *Server) handleSendMessage(c *fiber.Ctx) error {
	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("Receiver ID and content required")
	}
	msg, err := s.deps.Game.SendMessage(c.UserContext(), email(c), req.ReceiverUserID, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": msg})
}
