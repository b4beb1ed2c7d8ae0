package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"waitline/internal/shared/config"
	"waitline/internal/shared/constants"
	"waitline/internal/shared/middleware"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// SmokeResult is the outcome of one request against a running server
type SmokeResult struct {
	Step         string        `json:"step"`
	StatusCode   int           `json:"status_code"`
	ResponseTime time.Duration `json:"response_time"`
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
}

type apiEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type SmokeSuite struct {
	BaseURL    string
	Secret     string
	AdminID    uuid.UUID
	Users      int
	Results    []SmokeResult
	client     *http.Client
	redis      *redis.Client
	resultsMux sync.Mutex
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	suite := &SmokeSuite{
		BaseURL: getEnv("SMOKE_BASE_URL", "http://localhost"+cfg.GetServerAddress()+cfg.GetAPIBasePath()),
		Secret:  cfg.JWT.Secret,
		AdminID: uuid.New(),
		Users:   12,
		client:  &http.Client{Timeout: 30 * time.Second},
	}

	fmt.Println("🧪 Starting Waitline smoke test...")
	fmt.Println("==================================")

	if cfg.Redis.Enabled {
		suite.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer suite.redis.Close()

		if err := suite.redis.Ping(context.Background()).Err(); err != nil {
			log.Printf("⚠️  Redis not reachable, skipping cache checks: %v", err)
			suite.redis = nil
		} else {
			fmt.Println("✅ Redis connection: OK")
		}
	}

	if err := suite.Run(context.Background()); err != nil {
		suite.generateReport()
		log.Fatalf("❌ Smoke test failed: %v", err)
	}

	suite.generateReport()
	fmt.Println("\n🎉 Smoke test complete!")
}

// Run creates a small event, queues users concurrently and walks an offer round
func (s *SmokeSuite) Run(ctx context.Context) error {
	var event struct {
		ID uuid.UUID `json:"id"`
	}
	err := s.call(ctx, "create event", http.MethodPost, "/admin/events", middleware.RoleAdmin, s.AdminID, map[string]interface{}{
		"name":           "Smoke " + time.Now().Format(time.RFC3339),
		"venue":          "Smoke Hall",
		"date_time":      time.Now().Add(7 * 24 * time.Hour),
		"total_capacity": 3,
		"status":         "published",
	}, &event)
	if err != nil {
		return err
	}
	fmt.Printf("   🎫 Event %s\n", event.ID)
	eventPath := "/admin/waitlist/" + event.ID.String()

	// Concurrent joins must still produce positions 1..n
	userIDs := make([]uuid.UUID, s.Users)
	var wg sync.WaitGroup
	for i := range userIDs {
		userIDs[i] = uuid.New()
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			_ = s.call(ctx, "join", http.MethodPost, "/waitlist/"+event.ID.String(), middleware.RoleUser, userID, nil, nil)
		}(userIDs[i])
	}
	wg.Wait()

	var queue []struct {
		UserID   uuid.UUID `json:"user_id"`
		Position *int      `json:"position"`
	}
	if err := s.call(ctx, "list queue", http.MethodGet, eventPath+"?status=WAITING", middleware.RoleAdmin, s.AdminID, nil, &queue); err != nil {
		return err
	}
	if len(queue) != s.Users {
		return fmt.Errorf("expected %d waiting entries, got %d", s.Users, len(queue))
	}
	for i, e := range queue {
		if e.Position == nil || *e.Position != i+1 {
			return fmt.Errorf("queue positions are not dense at index %d", i)
		}
	}
	fmt.Printf("   ✅ %d concurrent joins, positions dense\n", len(queue))

	var notified struct {
		Notified []struct {
			UserID uuid.UUID `json:"user_id"`
		} `json:"notified"`
	}
	if err := s.call(ctx, "notify", http.MethodPost, eventPath+"/notify", middleware.RoleAdmin, s.AdminID, map[string]int{"slots": 2, "deadline_hours": 1}, &notified); err != nil {
		return err
	}
	if len(notified.Notified) != 2 {
		return fmt.Errorf("expected 2 offers, got %d", len(notified.Notified))
	}

	// Stats twice: the second read should be served from Redis
	for i := 0; i < 2; i++ {
		if err := s.call(ctx, "stats", http.MethodGet, eventPath+"/stats", middleware.RoleAdmin, s.AdminID, nil, nil); err != nil {
			return err
		}
	}
	if s.redis != nil {
		exists, err := s.redis.Exists(ctx, constants.BuildWaitlistStatsKey(event.ID.String())).Result()
		if err != nil {
			return fmt.Errorf("check stats cache: %w", err)
		}
		fmt.Printf("   💾 Stats cached in Redis: %t\n", exists == 1)
	}

	var promoted struct {
		Promoted int `json:"promoted"`
	}
	if err := s.call(ctx, "auto-promote", http.MethodPost, eventPath+"/auto-promote", middleware.RoleAdmin, s.AdminID, nil, &promoted); err != nil {
		return err
	}
	if promoted.Promoted != 3 {
		return fmt.Errorf("expected 3 promotions into an empty event of capacity 3, got %d", promoted.Promoted)
	}
	fmt.Printf("   ✅ Auto-promoted %d users\n", promoted.Promoted)

	return nil
}

// call performs one authenticated request and decodes the data field into out
func (s *SmokeSuite) call(ctx context.Context, step, method, path, role string, userID uuid.UUID, body, out interface{}) error {
	result := SmokeResult{Step: step}
	defer func() { s.record(result) }()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			result.Error = err.Error()
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.BaseURL+path, reader)
	if err != nil {
		result.Error = err.Error()
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := middleware.IssueAccessToken(s.Secret, userID, userID.String()+"@smoke.local", role, time.Hour)
	if err != nil {
		result.Error = err.Error()
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := s.client.Do(req)
	result.ResponseTime = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return fmt.Errorf("%s: %w", step, err)
	}
	defer resp.Body.Close()
	result.StatusCode = resp.StatusCode

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		result.Error = err.Error()
		return fmt.Errorf("%s: decode response: %w", step, err)
	}
	if resp.StatusCode >= 400 {
		result.Error = envelope.Message
		return fmt.Errorf("%s: HTTP %d: %s", step, resp.StatusCode, envelope.Message)
	}

	result.Success = true
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("%s: decode data: %w", step, err)
		}
	}
	return nil
}

func (s *SmokeSuite) record(result SmokeResult) {
	s.resultsMux.Lock()
	defer s.resultsMux.Unlock()
	s.Results = append(s.Results, result)
}

func (s *SmokeSuite) generateReport() {
	fmt.Println("\n📊 SMOKE TEST REPORT")
	fmt.Println("====================")

	total := len(s.Results)
	successful := 0
	var totalTime time.Duration
	for _, result := range s.Results {
		if result.Success {
			successful++
		}
		totalTime += result.ResponseTime
	}

	fmt.Printf("Total Requests: %d\n", total)
	if total == 0 {
		return
	}
	fmt.Printf("Successful: %d (%.1f%%)\n", successful, float64(successful)/float64(total)*100)
	fmt.Printf("Average Response Time: %v\n", totalTime/time.Duration(total))

	reportData, err := json.MarshalIndent(map[string]interface{}{
		"summary": map[string]interface{}{
			"total_requests":      total,
			"successful_requests": successful,
		},
		"results": s.Results,
	}, "", "  ")
	if err != nil {
		log.Printf("Failed to encode report: %v", err)
		return
	}
	if err := os.WriteFile("smoke_results.json", reportData, 0o644); err != nil {
		log.Printf("Failed to write report: %v", err)
		return
	}
	fmt.Println("\n💾 Detailed results saved to smoke_results.json")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
