// main.go - The Task Dispatcher process (§4.G): pulls task ids off the
// broker queue and drives each through the Job Orchestrator, independent
// of the synchronous HTTP front-end in cmd/api.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bosocmputer/groundocr/internal/blobstore"
	"github.com/bosocmputer/groundocr/internal/broker"
	"github.com/bosocmputer/groundocr/internal/config"
	"github.com/bosocmputer/groundocr/internal/dispatcher"
	"github.com/bosocmputer/groundocr/internal/inference"
	"github.com/bosocmputer/groundocr/internal/taskstore"
)

func main() {
	cfg := config.Load()

	store, err := taskstore.Connect(cfg.DatabaseURL, "groundocr")
	if err != nil {
		log.Fatalf("Failed to connect to task store: %v", err)
	}
	defer store.Close()

	b, err := broker.New(cfg.RedisURL, cfg.CeleryQueue)
	if err != nil {
		log.Fatalf("Failed to connect to broker: %v", err)
	}
	defer b.Close()

	client := inference.New(inference.Deps{
		APIKey:         cfg.ModelPath,
		ModelName:      cfg.ModelPath,
		MaxConcurrency: cfg.PDFMaxConcurrency,
		RemoteURL:      cfg.WorkerRemoteInferURL,
		AuthToken:      cfg.InternalAPIToken,
		RemotePool:     cfg.PDFMaxConcurrency,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := inference.InitIfLocal(ctx, client, cfg.ModelPath); err != nil {
		log.Fatalf("Failed to initialize inference engine: %v", err)
	}
	defer inference.ShutdownIfLocal(client)

	mirror, err := blobstore.NewMirror(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		log.Printf("object storage mirroring disabled: %v", err)
	} else if mirror != nil {
		if err := mirror.EnsureBucket(ctx); err != nil {
			log.Printf("object storage mirroring disabled: %v", err)
			mirror = nil
		}
	}
	d := &dispatcher.Dispatcher{
		Broker:      b,
		Store:       store,
		Client:      client,
		StorageRoot: cfg.StorageDir,
		Concurrency: cfg.PDFMaxConcurrency,
		DPI:         144,
		PDFPrompt:   cfg.PDFPrompt,
		Sizing: inference.Sizing{
			BaseSize:  cfg.BaseSize,
			ImageSize: cfg.ImageSize,
			CropMode:  cfg.CropMode,
		},
		Mirror: mirror,
	}

	go func() {
		log.Println("dispatcher: listening on queue", cfg.CeleryQueue)
		d.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()
	log.Println("Worker exited")
}
