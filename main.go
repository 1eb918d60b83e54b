package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"chatsync/config"
	"chatsync/database"
	"chatsync/handlers"
	"chatsync/realtime"
	"chatsync/routes"
	"chatsync/storage"
	"chatsync/store"
	"chatsync/websocket"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := config.Validate(cfg); err != nil {
		log.Fatal("Invalid config:", err)
	}

	log.Println("Connecting to MongoDB...")

	var dbErr error
	for i := 1; i <= 3; i++ {
		if err := database.ConnectMongo(cfg.Mongo.URI, cfg.Mongo.Database); err != nil {
			dbErr = err
			log.Printf("MongoDB connection attempt %d failed: %v", i, err)
			time.Sleep(2 * time.Second)
			continue
		}
		dbErr = nil
		break
	}
	if dbErr != nil {
		log.Fatal("Failed to connect to MongoDB:", dbErr)
	}

	indexCtx, indexCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureIndexes(indexCtx); err != nil {
		indexCancel()
		log.Fatal("Failed to create indexes:", err)
	}
	indexCancel()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	userStore := store.NewUserStore(database.Users)
	chatStore := store.NewChatStore(database.Chats, database.Messages)
	messageStore := store.NewMessageStore(database.Messages)
	contactStore := store.NewContactStore(database.Contacts)

	var blobStore *storage.BlobStore
	if cfg.Blob.CloudinaryURL != "" {
		bs, err := storage.NewBlobStore(cfg.Blob.CloudinaryURL)
		if err != nil {
			log.Fatal("Failed to initialize file storage:", err)
		}
		blobStore = bs
	} else {
		log.Println("CLOUDINARY_URL not set, file uploads disabled")
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	rtRouter := realtime.NewRouter(database.Chats, database.Messages, database.Users)
	if err := rtRouter.Start(rootCtx); err != nil {
		log.Fatal("Failed to start change streams:", err)
	}

	wsManager := websocket.NewManager(rtRouter, userStore, cfg.Typing.StalenessThreshold)
	go wsManager.Start(rootCtx)

	handlers.Init(handlers.Deps{
		Users:    userStore,
		Chats:    chatStore,
		Messages: messageStore,
		Contacts: contactStore,
		Blobs:    blobStore,
		WS:       wsManager,
		Config:   cfg,
	})

	router := routes.SetupRouter(cfg)

	router.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	router.GET("/ws", func(c *gin.Context) {
		websocket.Handler(wsManager, cfg.JWT.Secret)(c.Writer, c.Request)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Server running on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server error:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println("Forced shutdown:", err)
	}

	rootCancel()
	rtRouter.Stop()

	if err := database.DisconnectMongo(); err != nil {
		log.Println("MongoDB disconnect error:", err)
	}

	log.Println("Server stopped")
}
