package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"slackclone/internal/common"
	"slackclone/internal/config"
	"slackclone/internal/dbmongo"
	"slackclone/internal/health"
	"slackclone/internal/media"
)

// Serves attachments on their own, for deployments that keep file traffic
// off the chat API.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	limit, err := cfg.UploadLimit()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	mongoClient, err := dbmongo.NewMongoConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Close(context.Background())

	checker := health.NewChecker()
	checker.Add("mongo", mongoClient.Ping)

	router := mux.NewRouter()
	router.Use(common.LoggingMiddleware(nil, nil))
	router.Use(common.RecoverMiddleware)
	router.Use(common.CORSMiddleware(cfg.Server.AllowOrigin))
	router.Handle("/health", checker).Methods(http.MethodGet)
	media.NewHTTPServer(dbmongo.NewMediaStorage(mongoClient), limit, cfg.Upload.BaseURL).RegisterRoutes(router)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("🚀 Media HTTP Server starting on %s", server.Addr)
		log.Printf("📂 Serving files at: %s{fileId}", cfg.Upload.BaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Media server stopped")
}
