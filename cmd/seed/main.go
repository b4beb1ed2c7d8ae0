package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"waitline/internal/events"
	"waitline/internal/participation"
	"waitline/internal/shared/config"
	"waitline/internal/shared/database"
	"waitline/internal/shared/middleware"
	"waitline/internal/waitlist"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Seeder struct {
	cfg      *config.Config
	db       *database.DB
	events   events.Repository
	waitlist waitlist.Service

	adminID uuid.UUID
	userIDs []uuid.UUID
}

func main() {
	fmt.Println("🌱 Starting Waitline Database Seeder...")

	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	pg := db.GetPostgreSQL()
	eventRepo := events.NewRepository(pg)
	seeder := &Seeder{
		cfg:    cfg,
		db:     db,
		events: eventRepo,
		waitlist: waitlist.NewService(waitlist.Dependencies{
			Store:        waitlist.NewRepository(pg),
			Events:       eventRepo,
			Participants: participation.NewRepository(pg),
		}, nil),
		adminID: uuid.New(),
	}

	// Clean database
	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	// Seed data
	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(context.Background()); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	seeder.PrintTokens()

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates all tables
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"waitlist_entries",
		"participations",
		"events",
	}

	for _, table := range tables {
		if err := s.db.GetPostgreSQL().Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
		fmt.Printf("   🗑️  Truncated %s\n", table)
	}
	return nil
}

// SeedAll creates a sold-out event with a waitlist and an open event with
// spare capacity
func (s *Seeder) SeedAll(ctx context.Context) error {
	for i := 0; i < 8; i++ {
		s.userIDs = append(s.userIDs, uuid.New())
	}

	soldOut := &events.Event{
		Name:          "Go Systems Meetup",
		Description:   "Talks on storage engines and schedulers",
		Venue:         "Hall A",
		DateTime:      time.Now().Add(14 * 24 * time.Hour),
		TotalCapacity: 3,
		Status:        events.EventStatusPublished,
		CreatedBy:     s.adminID,
	}
	open := &events.Event{
		Name:          "Distributed Tracing Workshop",
		Description:   "Hands-on session",
		Venue:         "Room 204",
		DateTime:      time.Now().Add(30 * 24 * time.Hour),
		TotalCapacity: 20,
		Status:        events.EventStatusPublished,
		CreatedBy:     s.adminID,
	}
	for _, e := range []*events.Event{soldOut, open} {
		if err := s.events.Create(ctx, e); err != nil {
			return fmt.Errorf("failed to create event %q: %w", e.Name, err)
		}
		fmt.Printf("   🎫 Event %s (%s), capacity %d\n", e.Name, e.ID, e.TotalCapacity)
	}

	// First three users fill the sold-out event, the rest queue up
	for i, userID := range s.userIDs {
		entry, err := s.waitlist.AddToWaitingList(ctx, soldOut.ID, userID, fmt.Sprintf("seed user %d", i+1))
		if err != nil {
			return fmt.Errorf("failed to add user %d to waitlist: %w", i+1, err)
		}
		if i < 3 {
			if _, err := s.waitlist.PromoteToParticipant(ctx, soldOut.ID, userID); err != nil {
				return fmt.Errorf("failed to promote user %d: %w", i+1, err)
			}
			continue
		}
		fmt.Printf("   ⏳ User %s waiting at position %d\n", userID, entry.Position)
	}

	// One open offer so the expiry and reminder jobs have work
	result, err := s.waitlist.NotifyWaitlistForAvailableSlots(ctx, soldOut.ID, 1, 1)
	if err != nil {
		return fmt.Errorf("failed to notify waitlist: %w", err)
	}
	for _, e := range result.Notified {
		fmt.Printf("   📨 Offered a slot to %s until %s\n", e.UserID, e.ResponseDeadline.Format(time.RFC3339))
	}

	// A few users queue for the open event; auto-promote admits them
	for _, userID := range s.userIDs[:3] {
		if _, err := s.waitlist.AddToWaitingList(ctx, open.ID, userID, ""); err != nil {
			return fmt.Errorf("failed to add user to open event: %w", err)
		}
	}
	promoted, err := s.waitlist.AutoPromoteFromWaitingList(ctx, open.ID, 0)
	if err != nil {
		return fmt.Errorf("failed to auto-promote: %w", err)
	}
	fmt.Printf("   ✅ Auto-promoted %d users into %s\n", promoted, open.Name)

	return nil
}

// PrintTokens prints access tokens for trying the API by hand
func (s *Seeder) PrintTokens() {
	ttl := 24 * time.Hour

	adminToken, err := middleware.IssueAccessToken(s.cfg.JWT.Secret, s.adminID, "admin@waitline.local", middleware.RoleAdmin, ttl)
	if err != nil {
		log.Printf("Failed to sign admin token: %v", err)
		return
	}
	fmt.Printf("\n🔑 Admin token:\n   %s\n", adminToken)

	if len(s.userIDs) > 3 {
		userToken, err := middleware.IssueAccessToken(s.cfg.JWT.Secret, s.userIDs[3], "user4@waitline.local", middleware.RoleUser, ttl)
		if err != nil {
			log.Printf("Failed to sign user token: %v", err)
			return
		}
		fmt.Printf("🔑 Token for the offered user:\n   %s\n", userToken)
	}
}
