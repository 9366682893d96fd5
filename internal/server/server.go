package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"go.uber.org/zap"

	"github.com/Rana718/petquest/internal/auth"
	"github.com/Rana718/petquest/internal/dashboard"
	"github.com/Rana718/petquest/internal/game"
	"github.com/Rana718/petquest/internal/gateway"
	"github.com/Rana718/petquest/internal/logging"
	"github.com/Rana718/petquest/internal/schema"
	"github.com/Rana718/petquest/internal/upload"
)

const sessionCookie = "petquest_admin"

// Deps are the components the server routes to.
type Deps struct {
	Registry   *schema.Registry
	Gateway    *gateway.Gateway
	Uploads    *upload.Store
	Game       *game.Service
	Resolver   auth.Resolver
	Authorizer auth.Authorizer
	CookieName string
	LoginURL   string
	// MaxUploadBytes bounds request bodies along with the upload store.
	MaxUploadBytes int64
	// SessionTTL and MaxSessions bound the dashboard session store; zero
	// keeps the store defaults.
	SessionTTL  time.Duration
	MaxSessions int
	Now         func() time.Time
	Logger      *zap.Logger
}

type Server struct {
	app       *fiber.App
	deps      Deps
	dashboard *dashboard.Dashboard
	sessions  *dashboard.Sessions
	logger    *zap.Logger
}

func New(deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.CookieName == "" {
		deps.CookieName = "session_token"
	}
	logger := logging.OrNop(deps.Logger)

	engine := html.NewFileSystem(http.FS(TemplatesFS), ".html")
	engine.AddFunc("nextSort", nextSort)
	engine.AddFunc("sortMark", sortMark)
	engine.AddFunc("add", func(a, b int) int { return a + b })

	s := &Server{
		deps:     deps,
		sessions: dashboard.NewSessions(sessionOptions(deps)...),
		logger:   logger,
	}
	s.dashboard = dashboard.New(dashboard.Config{
		Resolver:   deps.Resolver,
		Authorizer: deps.Authorizer,
		Registry:   deps.Registry,
		Rows:       deps.Gateway,
		Uploads:    deps.Uploads,
		LoginURL:   deps.LoginURL,
		PageSize:   deps.Gateway.PageSize(),
		Logger:     logger,
	})

	bodyLimit := 4 * 1024 * 1024
	if deps.MaxUploadBytes > 0 {
		bodyLimit = int(deps.MaxUploadBytes) + 1024*1024
	}

	s.app = fiber.New(fiber.Config{
		Views:                 engine,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             bodyLimit,
		ErrorHandler:          s.handleError,
		DisableStartupMessage: true,
	})

	s.setupRoutes()
	return s
}

func sessionOptions(deps Deps) []dashboard.SessionOption {
	opts := []dashboard.SessionOption{dashboard.WithSessionClock(deps.Now)}
	if deps.SessionTTL > 0 {
		opts = append(opts, dashboard.WithSessionTTL(deps.SessionTTL))
	}
	if deps.MaxSessions > 0 {
		opts = append(opts, dashboard.WithMaxSessions(deps.MaxSessions))
	}
	return opts
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) setupRoutes() {
	s.app.Use(recover.New())
	s.app.Use(s.requestLogger)

	if s.deps.Uploads != nil {
		s.app.Static("/uploads", s.deps.Uploads.Dir())
	}

	identify := auth.Identify(auth.MiddlewareConfig{
		Resolver:   s.deps.Resolver,
		CookieName: s.deps.CookieName,
		Logger:     s.logger,
	})
	admin := auth.RequireAdmin(s.deps.Authorizer)

	api := s.app.Group("/api")
	api.Get("/admin/status", identify, s.handleAdminStatus)

	// Owner only
	api.Get("/admin/schemas", identify, admin, s.handleListSchemas)
	api.Get("/admin/schemas/:table", identify, admin, s.handleGetSchema)
	api.Get("/tables/:table", identify, admin, s.handleListRows)
	api.Post("/tables/:table", identify, admin, s.handleCreateRow)
	api.Get("/tables/:table/export", identify, admin, s.handleExport)
	api.Get("/tables/:table/:id", identify, admin, s.handleGetRow)
	api.Put("/tables/:table/:id", identify, admin, s.handleUpdateRow)
	api.Delete("/tables/:table/:id", identify, admin, s.handleDeleteRow)
	// Avatars are open to every player and must match before :kind.
	api.Post("/upload/avatar", identify, s.saveUpload(upload.KindMedia, "avatar_url"))
	api.Post("/upload/:kind", identify, admin, s.handleUpload)

	// Any signed-in player
	if s.deps.Game != nil {
		api.Get("/pets", identify, s.handlePets)
		api.Post("/pets", identify, s.handleCreatePet)
		api.Put("/pets/:id", identify, s.handleUpdatePet)
		api.Delete("/pets/:id", identify, s.handleDeletePet)
		api.Get("/quests", identify, s.handleQuests)
		api.Post("/quests", identify, s.handleCreateQuest)
		api.Get("/leaderboard", identify, s.handleLeaderboard)
		api.Post("/quests/complete", identify, s.handleCompleteQuest)
		api.Get("/quest-logs", identify, s.handleQuestLogs)
		api.Get("/challenges", identify, s.handleChallenges)
		api.Post("/challenge-participations", identify, s.handleJoinChallenge)
		api.Get("/challenge-participations", identify, s.handleParticipations)
		api.Get("/challenge-leaderboard/:challengeId", identify, s.handleChallengeLeaderboard)
		api.Get("/friendships/accepted", identify, s.handleFriends)
		api.Get("/friendships/pending", identify, s.handlePendingFriends)
		api.Post("/friendships/add", identify, s.handleAddFriend)
		api.Post("/friendships/accept", identify, s.handleRespondFriend(true))
		api.Post("/friendships/reject", identify, s.handleRespondFriend(false))
		api.Get("/users/search", identify, s.handleSearchUsers)
		api.Get("/messages", identify, s.handleMessages)
		api.Post("/messages/send", identify, s.handleSendMessage)
	}

	// Admin UI
	ui := s.app.Group("/admin")
	ui.Get("/", s.handleDashboard)
	ui.Get("/tables/:table/new", s.handleNewRow)
	ui.Get("/tables/:table/rows/:id/edit", s.handleEditRow)
	ui.Post("/tables/:table/rows", s.handleSaveRow)
	ui.Post("/tables/:table/rows/:id", s.handleSaveRow)
	ui.Post("/tables/:table/rows/:id/delete", s.handleDeleteRowUI)
}

func (s *Server) Start(port int) error {
	s.logger.Info("server starting", zap.String("url", fmt.Sprintf("http://localhost:%d", port)))
	return s.app.Listen(fmt.Sprintf(":%d", port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// requestLogger logs every request. Server errors are logged by the error
// handler with the error itself.
func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		status, _ = errorStatus(err)
	}
	s.logger.Info("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("latency", time.Since(start)))
	return err
}
