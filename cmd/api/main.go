// main.go - The entry point and router setup for the synchronous
// OCR front-end (§6): health check, /api/ocr, and (when this process is
// paired with a Remote-backend worker) /internal/infer.
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

	"github.com/bosocmputer/groundocr/internal/api"
	"github.com/bosocmputer/groundocr/internal/config"
	"github.com/bosocmputer/groundocr/internal/inference"
)

func main() {
	cfg := config.Load()

	if ginMode := os.Getenv("GIN_MODE"); ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("Failed to create upload directory: %v", err)
	}

	client := inference.New(inference.Deps{
		APIKey:         cfg.ModelPath,
		ModelName:      cfg.ModelPath,
		MaxConcurrency: cfg.PDFMaxConcurrency,
		RemoteURL:      cfg.WorkerRemoteInferURL,
		AuthToken:      cfg.InternalAPIToken,
		RemotePool:     cfg.PDFMaxConcurrency,
	})
	ctx := context.Background()
	if err := inference.InitIfLocal(ctx, client, cfg.ModelPath); err != nil {
		log.Fatalf("Failed to initialize inference engine: %v", err)
	}
	defer inference.ShutdownIfLocal(client)

	srv := &api.Server{
		Client:         client,
		AllowedOrigins: cfg.AllowedOrigins,
		InternalToken:  cfg.InternalAPIToken,
		UploadDir:      cfg.UploadDir,
		DefaultSizing: inference.Sizing{
			BaseSize:  cfg.BaseSize,
			ImageSize: cfg.ImageSize,
			CropMode:  cfg.CropMode,
		},
	}

	httpServer := srv.NewHTTPServer(":" + cfg.Port)

	go func() {
		log.Printf("Starting server on :%s", cfg.Port)
		log.Println("API Endpoints:")
		log.Println("  GET  /health")
		log.Println("  POST /api/ocr")
		log.Println("  POST /internal/infer")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
