package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"chatsync/config"
	"chatsync/handlers"
	"chatsync/middleware"
)

func SetupRouter(cfg *config.Config) *gin.Engine {
	router := gin.Default()

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
			"ws":     "WebSocket available at /ws",
		})
	})

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:8080", "http://127.0.0.1:8080", "http://localhost:5500", "http://127.0.0.1:5500", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Public routes; the auth endpoints carry a per-IP limiter.
	authLimit := middleware.RateLimit(middleware.NewIPRateLimiter(cfg.Server.AuthRateLimit, time.Minute))
	router.POST("/api/signup", authLimit, handlers.Signup)
	router.POST("/api/login", authLimit, handlers.Login)
	router.GET("/api/vapid-public-key", handlers.GetVapidPublicKey)

	protected := router.Group("/api")
	protected.Use(middleware.JWTAuthMiddleware(cfg.JWT.Secret))

	// Session
	protected.POST("/logout", handlers.Logout)

	// Profile
	protected.GET("/me", handlers.GetMyProfile)
	protected.PUT("/me", handlers.UpdateMyProfile)
	protected.DELETE("/me", handlers.DeleteMyAccount)
	protected.PUT("/me/status", handlers.UpdateUserStatus)
	protected.GET("/user/:id", handlers.GetUser)
	protected.GET("/users/search", handlers.SearchUsers)
	protected.POST("/typing", handlers.SetTyping)

	// Contacts
	protected.POST("/contacts", handlers.AddContact)
	protected.GET("/contacts", handlers.GetContacts)
	protected.DELETE("/contacts/:id", handlers.DeleteContact)

	// Chats
	protected.GET("/chats", handlers.GetChatList)
	protected.POST("/chats", handlers.ResolveChat)
	protected.POST("/groups", handlers.CreateGroup)
	protected.GET("/chats/:id", handlers.GetChat)
	protected.PUT("/chats/:id", handlers.UpdateGroup)
	protected.DELETE("/chats/:id", handlers.DeleteChat)
	protected.GET("/chats/:id/messages", handlers.GetMessages)
	protected.POST("/chats/:id/read", handlers.MarkChatRead)

	// Messages
	protected.POST("/messages", handlers.SendMessage)
	protected.PUT("/messages/:id", handlers.EditMessage)
	protected.DELETE("/messages/:id", handlers.DeleteMessage)
	protected.POST("/messages/:id/read", handlers.MarkMessageRead)
	protected.POST("/messages/:id/react", handlers.ReactToMessage)
	protected.POST("/messages/:id/forward", handlers.ForwardMessage)

	// Push subscriptions
	protected.POST("/subscribe", handlers.SubscribePush)
	protected.DELETE("/subscribe", handlers.UnsubscribePush)

	router.NoRoute(func(c *gin.Context) {
		if len(c.Request.URL.Path) >= 4 && c.Request.URL.Path[:4] == "/api" {
			c.JSON(404, gin.H{
				"error": "Endpoint not found",
				"path":  c.Request.URL.Path,
			})
			return
		}
		c.Next()
	})

	return router
}
