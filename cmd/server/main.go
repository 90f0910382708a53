// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/sendloop/sendloop-backend/internal/config"
	"github.com/sendloop/sendloop-backend/internal/controller"
	"github.com/sendloop/sendloop-backend/internal/db"
	"github.com/sendloop/sendloop-backend/internal/handler"
	"github.com/sendloop/sendloop-backend/internal/model"
	"github.com/sendloop/sendloop-backend/internal/provider"
	"github.com/sendloop/sendloop-backend/internal/queue"
	"github.com/sendloop/sendloop-backend/internal/repository"
	"github.com/sendloop/sendloop-backend/internal/service"
)

func main() {
	// Load .env
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
	templateRepo := &repository.TemplateRepository{DB: database}
	leadRepo := &repository.LeadRepository{DB: database}
	recipientRepo := &repository.RecipientRepository{DB: database}

	// The server runs its own in-process queue and worker pool; the
	// standalone AMQP worker covers multi-process deployments.
	q := queue.NewMemoryQueue(queue.RetryConfig{
		MaxAttempts: cfg.MaxAttempts,
		BackoffBase: cfg.BackoffBase,
	})

	var sender provider.Sender
	if cfg.ProviderAPIURL != "" {
		sender = provider.NewHTTPProvider(cfg.ProviderAPIURL, cfg.ProviderAPIKey, cfg.FromEmail, cfg.FromName)
	} else {
		log.Println("PROVIDER_API_URL not set, using mock sender")
		sender = &provider.MockSender{}
	}

	var fallback *model.Template
	if cfg.FallbackTemplateID > 0 {
		fallback, err = templateRepo.GetByID(cfg.FallbackTemplateID)
		if err != nil {
			log.Fatal("failed to load fallback template: ", err)
		}
		if fallback == nil {
			log.Fatalf("fallback template %d not found", cfg.FallbackTemplateID)
		}
	}

	campaignService := &service.CampaignService{
		CampaignRepo:  campaignRepo,
		TemplateRepo:  templateRepo,
		LeadRepo:      leadRepo,
		RecipientRepo: recipientRepo,
		Queue:         q,
		Builder:       &service.JobBuilder{Fallback: fallback},
	}

	pool := &service.WorkerPool{
		Queue:         q,
		Sender:        sender,
		RecipientRepo: recipientRepo,
		LeadRepo:      leadRepo,
		Tracker:       campaignService,
		Workers:       cfg.WorkerCount,
		SendDelay:     cfg.SendDelay,
		SendTimeout:   cfg.SendTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go pool.Run(ctx)

	campaignController := &controller.CampaignController{CampaignService: campaignService}
	templateController := &controller.TemplateController{TemplateRepo: templateRepo}
	jobHandler := &handler.JobHandler{
		Service:  campaignService,
		Monitor:  &service.JobMonitor{Inspector: q},
		LeadRepo: leadRepo,
	}

	r := chi.NewRouter()

	// Campaign routes
	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", jobHandler.GetCampaignWithStats)
	r.Post("/campaigns/{id}/start", campaignController.StartCampaign)
	r.Post("/campaigns/{id}/stop", campaignController.StopCampaign)
	r.Post("/campaigns/{id}/preview", campaignController.PersonalizedPreview)
	r.Post("/campaigns/{id}/recipients", jobHandler.AttachRecipients)
	r.Post("/campaigns/{id}/events", jobHandler.TrackEvent)

	// Job monitor
	r.Get("/campaigns/{id}/jobs", jobHandler.ListJobs)
	r.Post("/jobs/{jobID}/retry", jobHandler.RetryJob)

	// Templates and leads
	r.Post("/templates", templateController.CreateTemplate)
	r.Get("/templates", templateController.ListTemplates)
	r.Post("/leads", jobHandler.CreateLead)
	r.Get("/leads", jobHandler.ListLeads)

	log.Println("server running on :" + cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}
