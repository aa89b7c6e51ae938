package webserver

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/modelarena/arena/src/achievements"
	"github.com/modelarena/arena/src/ai/providers"
	"github.com/modelarena/arena/src/api/config"
	"github.com/modelarena/arena/src/scoring"
	"github.com/modelarena/arena/src/treasury"
	"github.com/modelarena/arena/src/x402"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps bundles the collaborators the handlers need.
type Deps struct {
	DB           *gorm.DB
	RDB          *redis.Client
	Gate         *x402.Gate
	Engine       *scoring.Engine
	Pool         *providers.Pool
	Treasury     *treasury.Client
	Achievements *achievements.Service
}

func attachRoutes(r *gin.Engine, cfg config.Config, deps Deps) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", x402.HeaderSessionToken, x402.HeaderPaymentAuth},
		ExposeHeaders:    []string{"Content-Length", x402.HeaderSessionToken},
		AllowCredentials: true,
	}))

	if deps.Gate != nil {
		r.Use(deps.Gate.Middleware())
	}

	arenaH := NewArena(deps.DB, deps.Pool, deps.Engine)
	lbH := NewLeaderboard(deps.DB, deps.RDB)
	promptH := NewPrompts(deps.DB)
	userH := NewUsers(deps.DB, deps.Achievements)
	payH := NewPay(deps.Treasury)
	adminH := NewAdmin(deps.DB)

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	chatLimiter := NewRateLimiter(30, time.Minute)

	arena := r.Group("/arena")
	{
		arena.POST("/chat", RateLimitMiddleware(chatLimiter), arenaH.Chat)
		arena.POST("/chat/stream", RateLimitMiddleware(chatLimiter), arenaH.ChatStream)
		arena.POST("/vote", arenaH.Vote)
		arena.POST("/pay", payH.Charge)
		arena.POST("/consensus/run", adminH.RunConsensus)
	}

	r.GET("/leaderboard/models", lbH.Models)
	r.GET("/leaderboard/users", lbH.Users)

	prompts := r.Group("/prompts")
	{
		prompts.GET("", promptH.List)
		prompts.POST("", promptH.Create)
		prompts.GET("/:id", promptH.Get)
		prompts.PATCH("/:id", promptH.Update)
		prompts.DELETE("/:id", promptH.Delete)
		prompts.POST("/:id/like", promptH.Like)
	}

	users := r.Group("/users")
	{
		users.GET("/:wallet", userH.Get)
		users.GET("/:wallet/achievements", userH.Achievements)
		users.POST("/:wallet/achievements/evaluate", userH.Evaluate)
		users.POST("/:wallet/achievements/:id/claim", userH.Claim)
		users.GET("/:wallet/rewards", userH.Rewards)
	}
}
