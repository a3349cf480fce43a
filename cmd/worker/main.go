// cmd/worker/main.go
package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/dripworks/leadflow-backend/internal/db"
	"github.com/dripworks/leadflow-backend/internal/queue"
	"github.com/dripworks/leadflow-backend/internal/repository"
	"github.com/dripworks/leadflow-backend/internal/service"
	"github.com/dripworks/leadflow-backend/internal/transport"
)

const (
	dueBatchLimit      = 50
	replyScanSinceDays = 30
	retentionDays      = 90
)

func main() {
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

	q := dispatchQueue()
	consumers := workerCount()
	for i := 0; i < consumers; i++ {
		go func() {
			err := q.Consume(func(job queue.DispatchJob) error {
				outcome, err := engine.DispatchByID(job.QueuedEmailID)
				if err != nil {
					return err
				}
				if outcome != service.DispatchLost {
					log.Printf("dispatched queued email %d: %s", job.QueuedEmailID, outcome)
				}
				return nil
			})
			if err != nil {
				log.Fatal("consumer stopped:", err)
			}
		}()
	}

	c := cron.New()

	// Scan for due emails and fan them out to the dispatch consumers.
	c.AddFunc("@every 1m", func() {
		ids, err := engine.CollectDue(dueBatchLimit)
		if err != nil {
			log.Println("due scan failed:", err)
			return
		}
		for _, id := range ids {
			if err := q.Publish(queue.DispatchJob{QueuedEmailID: id}); err != nil {
				log.Printf("publish queued email %d: %v", id, err)
			}
		}
		if len(ids) > 0 {
			log.Printf("due scan published %d items", len(ids))
		}
	})

	// Watch the inbox for replies and opt-outs.
	c.AddFunc("@every 5m", func() {
		result, err := scanner.ScanForReplies(replyScanSinceDays)
		if err != nil {
			log.Println("reply scan failed:", err)
			return
		}
		if result.RepliesFound > 0 {
			log.Printf("reply scan: %d replies, %d contacts updated", result.RepliesFound, result.ContactsUpdated)
		}
	})

	// Retention sweep for terminal queue rows.
	c.AddFunc("@daily", func() {
		n, err := engine.SweepTerminal(retentionDays * 24 * time.Hour)
		if err != nil {
			log.Println("retention sweep failed:", err)
			return
		}
		log.Printf("retention sweep removed %d terminal queue rows", n)
	})

	log.Printf("worker running with %d dispatch consumers", consumers)
	c.Run()
}

// dispatchQueue prefers RabbitMQ when AMQP_URL is set, falling back to the
// in-process queue for single-binary runs.
func dispatchQueue() queue.Queue {
	url := os.Getenv("AMQP_URL")
	if url == "" {
		log.Println("AMQP_URL not set, using in-memory dispatch queue")
		return queue.NewInMemoryQueue()
	}
	q := queue.NewAMQPQueue(url, os.Getenv("AMQP_QUEUE"))
	if err := q.Connect(); err != nil {
		log.Fatal("amqp connect:", err)
	}
	return q
}

func workerCount() int {
	if n, err := strconv.Atoi(os.Getenv("DISPATCH_WORKERS")); err == nil && n > 0 {
		return n
	}
	return 4
}
