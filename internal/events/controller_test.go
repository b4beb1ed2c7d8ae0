package events

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) CreateEvent(ctx context.Context, adminID uuid.UUID, req CreateEventRequest) (*Event, error) {
	args := m.Called(ctx, adminID, req)
	event, _ := args.Get(0).(*Event)
	return event, args.Error(1)
}

func (m *mockService) GetEventByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	args := m.Called(ctx, id)
	event, _ := args.Get(0).(*Event)
	return event, args.Error(1)
}

func (m *mockService) GetAllEvents(ctx context.Context, query EventListQuery) ([]Event, int64, error) {
	args := m.Called(ctx, query)
	events, _ := args.Get(0).([]Event)
	return events, args.Get(1).(int64), args.Error(2)
}

func newTestEngine(svc Service, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	setUser := func(c *gin.Context) {
		if userID != "" {
			c.Set("user_id", userID)
		}
	}
	SetupEventRoutes(engine.Group("/api/v1"), NewController(svc), setUser)
	return engine
}

func TestController_CreateEvent(t *testing.T) {
	svc := new(mockService)
	adminID := uuid.New()
	req := CreateEventRequest{
		Name:          "Go Systems Meetup",
		Venue:         "Hall A",
		DateTime:      time.Date(2026, 11, 1, 18, 0, 0, 0, time.UTC),
		TotalCapacity: 50,
		Status:        "published",
	}
	svc.On("CreateEvent", mock.Anything, adminID, req).
		Return(&Event{ID: uuid.New(), Name: req.Name, TotalCapacity: 50}, nil).Once()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	newTestEngine(svc, adminID.String()).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/api/v1/admin/events", bytes.NewReader(body)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestController_CreateEventValidation(t *testing.T) {
	svc := new(mockService)
	body := []byte(`{"name":"Go","venue":"Hall A","total_capacity":0}`)

	rec := httptest.NewRecorder()
	newTestEngine(svc, uuid.NewString()).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/api/v1/admin/events", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestController_GetEvent(t *testing.T) {
	svc := new(mockService)
	known := uuid.New()
	svc.On("GetEventByID", mock.Anything, known).Return(&Event{ID: known, Name: "Workshop"}, nil)
	svc.On("GetEventByID", mock.Anything, mock.Anything).Return(nil, ErrEventNotFound)
	engine := newTestEngine(svc, "")

	tests := []struct {
		name string
		path string
		want int
	}{
		{"found", "/api/v1/events/" + known.String(), http.StatusOK},
		{"missing", "/api/v1/events/" + uuid.NewString(), http.StatusNotFound},
		{"bad id", "/api/v1/events/nope", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestController_GetAllEvents(t *testing.T) {
	svc := new(mockService)
	svc.On("GetAllEvents", mock.Anything, EventListQuery{Status: EventStatusPublished, Page: 2, Limit: 5}).
		Return([]Event{{ID: uuid.New()}}, int64(6), nil).Once()

	rec := httptest.NewRecorder()
	newTestEngine(svc, "").ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/api/v1/events?status=published&page=2&limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data struct {
			Total int `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 6, resp.Data.Total)
	svc.AssertExpectations(t)
}
