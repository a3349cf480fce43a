// cmd/seeder/main.go
package main

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/dripworks/leadflow-backend/internal/db"
	"github.com/dripworks/leadflow-backend/internal/model"
	"github.com/dripworks/leadflow-backend/internal/repository"
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

	list := &model.ContactList{Name: "Demo prospects"}
	if err := contactRepo.CreateList(list); err != nil {
		log.Fatal("create contact list:", err)
	}

	contacts := []model.Contact{
		{ListID: list.ID, Email: "alice@example.com", FirstName: "Alice", LastName: "Smith", Company: "Acme Corp", Position: "CTO"},
		{ListID: list.ID, Email: "bob@example.com", FirstName: "Bob", LastName: "Jones", Company: "Globex", Position: "Head of Ops"},
		{ListID: list.ID, Email: "carol@example.com", FirstName: "Carol", LastName: "White", Company: "Initech", Position: "VP Engineering"},
	}
	for i := range contacts {
		if err := contactRepo.Create(&contacts[i]); err != nil {
			log.Fatal("create contact:", err)
		}
	}

	campaign := &model.Campaign{
		Name:                 "Q3 outreach",
		CampaignRef:          fmt.Sprintf("LF-%s0001", time.Now().Format("06")),
		Status:               model.CampaignDraft,
		ContactListID:        list.ID,
		SendingWindowStart:   9 * 60,
		SendingWindowEnd:     17 * 60,
		SendingDays:          "Mon,Tue,Wed,Thu,Fri",
		RandomizationMinutes: 15,
		DailySendLimit:       50,
		StepDelayDays:        3,
	}
	if err := campaignRepo.Create(campaign); err != nil {
		log.Fatal("create campaign:", err)
	}

	steps := []model.EmailStep{
		{
			CampaignID:      campaign.ID,
			StepNumber:      1,
			SubjectTemplate: "Quick question, {{FirstName}}",
			BodyTemplate:    "<p>Hi {{FirstName}},</p><p>I noticed {{Company}} is growing fast. Worth a chat?</p>",
			DelayDays:       0,
			Active:          true,
		},
		{
			CampaignID:      campaign.ID,
			StepNumber:      2,
			SubjectTemplate: "Following up, {{FirstName}}",
			BodyTemplate:    "<p>Hi {{FirstName}},</p><p>Just floating this back to the top of your inbox.</p>",
			DelayDays:       3,
			Active:          true,
		},
		{
			CampaignID:      campaign.ID,
			StepNumber:      3,
			SubjectTemplate: "Last note from me",
			BodyTemplate:    "<p>Hi {{FirstName}},</p><p>I'll stop here. Reply any time if this becomes relevant for {{Company}}.</p>",
			DelayDays:       7,
			Active:          true,
		},
	}
	for i := range steps {
		if err := campaignRepo.CreateStep(&steps[i]); err != nil {
			log.Fatal("create step:", err)
		}
	}

	log.Printf("seeded campaign %d (%s) with %d contacts and %d steps",
		campaign.ID, campaign.CampaignRef, len(contacts), len(steps))
}
