// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/dripworks/leadflow-backend/internal/controller"
	"github.com/dripworks/leadflow-backend/internal/db"
	"github.com/dripworks/leadflow-backend/internal/repository"
	"github.com/dripworks/leadflow-backend/internal/service"
	"github.com/dripworks/leadflow-backend/internal/transport"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	conn, err := db.Init()
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	contactRepo := &repository.ContactRepository{DB: conn}
	membershipRepo := &repository.CampaignContactRepository{DB: conn}
	queueRepo := &repository.QueueRepository{DB: conn}
	logRepo := &repository.EmailLogRepository{DB: conn}
	suppressionRepo := &repository.SuppressionRepository{DB: conn}

	suppression := &service.SuppressionService{
		SuppressionRepo: suppressionRepo,
		MembershipRepo:  membershipRepo,
		QueueRepo:       queueRepo,
		ContactRepo:     contactRepo,
	}
	lifecycle := &service.LifecycleService{
		CampaignRepo:   campaignRepo,
		ContactRepo:    contactRepo,
		MembershipRepo: membershipRepo,
		QueueRepo:      queueRepo,
		Suppression:    suppression,
	}

	// TODO: swap the mock for the real provider adapter once it lands.
	mail := transport.NewMockTransport(0.1)

	engine := &service.QueueEngine{
		CampaignRepo:   campaignRepo,
		ContactRepo:    contactRepo,
		MembershipRepo: membershipRepo,
		QueueRepo:      queueRepo,
		LogRepo:        logRepo,
		Suppression:    suppression,
		Transport:      mail,
	}
	scanner := &service.ReplyScanner{
		Transport:      mail,
		ContactRepo:    contactRepo,
		MembershipRepo: membershipRepo,
		QueueRepo:      queueRepo,
		LogRepo:        logRepo,
		Suppression:    suppression,
	}

	campaignController := &controller.CampaignController{
		Lifecycle:   lifecycle,
		Engine:      engine,
		Scanner:     scanner,
		Suppression: suppression,
	}

	r := chi.NewRouter()

	// Campaign lifecycle
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Post("/campaigns/{id}/activate", campaignController.ActivateCampaign)
	r.Post("/campaigns/{id}/pause", campaignController.PauseCampaign)
	r.Post("/campaigns/{id}/complete", campaignController.CompleteCampaign)
	r.Post("/campaigns/{id}/archive", campaignController.ArchiveCampaign)
	r.Get("/campaigns/{id}/stats", campaignController.GetCampaignStats)

	// Engine operations
	r.Post("/run-cycle", campaignController.RunDueCycle)
	r.Post("/scan-replies", campaignController.ScanForReplies)

	// Suppression list
	r.Post("/suppressions", campaignController.AddSuppression)
	r.Get("/suppressions", campaignController.ListSuppressions)
	r.Delete("/suppressions/{email}", campaignController.RemoveSuppression)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Println("server running on", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}
