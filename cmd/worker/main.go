// cmd/worker/main.go
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sendloop/sendloop-backend/internal/config"
	"github.com/sendloop/sendloop-backend/internal/db"
	"github.com/sendloop/sendloop-backend/internal/provider"
	"github.com/sendloop/sendloop-backend/internal/queue"
	"github.com/sendloop/sendloop-backend/internal/repository"
	"github.com/sendloop/sendloop-backend/internal/service"
)

// Standalone dispatch worker: consumes the durable RabbitMQ job queue
// published by an external enqueuer. Terminal failures land on the
// failed queue for operator replay.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	database, err := db.Connect(cfg.DSN())
	if err != nil {
		log.Fatal("failed to connect to DB: ", err)
	}
	defer database.Close()

	campaignRepo := &repository.CampaignRepository{DB: database}
	leadRepo := &repository.LeadRepository{DB: database}
	recipientRepo := &repository.RecipientRepository{DB: database}

	q, err := queue.NewAMQPQueue(cfg.AMQPURL, queue.RetryConfig{
		MaxAttempts: cfg.MaxAttempts,
		BackoffBase: cfg.BackoffBase,
	})
	if err != nil {
		log.Fatal("failed to connect to RabbitMQ: ", err)
	}
	defer q.Close()

	if err := q.StartConsuming(); err != nil {
		log.Fatal("failed to start consumer: ", err)
	}

	var sender provider.Sender
	if cfg.ProviderAPIURL != "" {
		sender = provider.NewHTTPProvider(cfg.ProviderAPIURL, cfg.ProviderAPIKey, cfg.FromEmail, cfg.FromName)
	} else {
		log.Println("PROVIDER_API_URL not set, using mock sender")
		sender = &provider.MockSender{}
	}

	tracker := &service.CampaignService{
		CampaignRepo:  campaignRepo,
		RecipientRepo: recipientRepo,
	}

	pool := &service.WorkerPool{
		Queue:         q,
		Sender:        sender,
		RecipientRepo: recipientRepo,
		LeadRepo:      leadRepo,
		Tracker:       tracker,
		Workers:       cfg.WorkerCount,
		SendDelay:     cfg.SendDelay,
		SendTimeout:   cfg.SendTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Println("worker running, waiting for messages...")
	pool.Run(ctx)
	log.Println("worker drained, shutting down")
}
