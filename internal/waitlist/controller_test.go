package waitlist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"waitline/internal/shared/config"
	"waitline/internal/shared/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "controller-test-secret"

type apiResponse struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

type controllerEnv struct {
	*testEnv
	engine *gin.Engine
}

func newControllerEnv(t *testing.T) *controllerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := newTestEnv(t)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: testSecret}}

	engine := gin.New()
	controller := NewController(env.service, NewQueries(env.store, nil, 0), DefaultAuthorizer())
	SetupWaitlistRoutes(engine.Group("/api/v1"), controller, middleware.JWTAuthWithConfig(cfg))

	return &controllerEnv{testEnv: env, engine: engine}
}

func (env *controllerEnv) do(t *testing.T, method, path, role string, userID uuid.UUID, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		token, err := middleware.IssueAccessToken(testSecret, userID, "test@waitline.local", role, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestController_JoinAndLeave(t *testing.T) {
	env := newControllerEnv(t)
	eventID := env.events.add(10)
	userID := uuid.New()

	rec, resp := env.do(t, http.MethodPost, "/waitlist/"+eventID.String(), middleware.RoleUser, userID, JoinWaitlistRequest{Note: "hi"})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)

	var entry WaitlistResponse
	require.NoError(t, json.Unmarshal(resp.Data, &entry))
	require.NotNil(t, entry.Position)
	assert.Equal(t, 1, *entry.Position)
	assert.Equal(t, StatusWaiting, entry.Status)
	assert.Equal(t, userID, entry.UserID)

	rec, _ = env.do(t, http.MethodPost, "/waitlist/"+eventID.String(), middleware.RoleUser, userID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/waitlist/"+eventID.String()+"/me", middleware.RoleUser, userID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodDelete, "/waitlist/"+eventID.String(), middleware.RoleUser, userID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/waitlist/"+eventID.String()+"/me", middleware.RoleUser, userID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestController_RequiresToken(t *testing.T) {
	env := newControllerEnv(t)
	eventID := env.events.add(10)

	rec, _ := env.do(t, http.MethodPost, "/waitlist/"+eventID.String(), "", uuid.Nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/waitlist/health", "", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestController_ErrorMapping(t *testing.T) {
	env := newControllerEnv(t)
	eventID := env.events.add(10)
	admin := uuid.New()

	tests := []struct {
		name   string
		method string
		path   string
		role   string
		body   interface{}
		want   int
	}{
		{"unknown event", http.MethodPost, "/waitlist/" + uuid.NewString(), middleware.RoleUser, nil, http.StatusNotFound},
		{"bad event id", http.MethodPost, "/waitlist/not-a-uuid", middleware.RoleUser, nil, http.StatusBadRequest},
		{"user cannot manage", http.MethodGet, "/admin/waitlist/" + eventID.String(), middleware.RoleUser, nil, http.StatusForbidden},
		{"bad status filter", http.MethodGet, "/admin/waitlist/" + eventID.String() + "?status=LOST", middleware.RoleAdmin, nil, http.StatusBadRequest},
		{"invalid reorder", http.MethodPut, "/admin/waitlist/" + eventID.String() + "/order", middleware.RoleAdmin, ReorderRequest{EntryIDs: []uuid.UUID{uuid.New()}}, http.StatusBadRequest},
		{"negative slots", http.MethodPost, "/admin/waitlist/" + eventID.String() + "/notify", middleware.RoleAdmin, map[string]int{"slots": -1}, http.StatusBadRequest},
		{"promote unknown user", http.MethodPost, "/admin/waitlist/" + eventID.String() + "/promote", middleware.RoleAdmin, PromoteRequest{UserID: uuid.New()}, http.StatusNotFound},
		{"respond missing accept", http.MethodPost, "/waitlist/entries/" + uuid.NewString() + "/respond", middleware.RoleUser, map[string]string{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := env.do(t, tt.method, tt.path, tt.role, admin, tt.body)
			assert.Equal(t, tt.want, rec.Code, resp.Message)
			assert.Equal(t, "error", resp.Status)
		})
	}
}

func TestController_AdminFlow(t *testing.T) {
	env := newControllerEnv(t)
	eventID := env.events.add(3)
	env.participants.seed(eventID, 1)
	entries := env.join(t, eventID, 4)
	admin := uuid.New()
	base := "/admin/waitlist/" + eventID.String()

	// reverse the queue
	order := []uuid.UUID{entries[3].ID, entries[2].ID, entries[1].ID, entries[0].ID}
	rec, resp := env.do(t, http.MethodPut, base+"/order", middleware.RoleOrganizer, admin, ReorderRequest{EntryIDs: order})
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)

	rec, resp = env.do(t, http.MethodPost, base+"/notify", middleware.RoleAdmin, admin, NotifyRequest{Slots: 1, DeadlineHours: 12})
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	var notified NotifyResponse
	require.NoError(t, json.Unmarshal(resp.Data, &notified))
	require.Len(t, notified.Notified, 1)
	assert.Equal(t, entries[3].UserID, notified.Notified[0].UserID)

	rec, resp = env.do(t, http.MethodGet, base+"/count?status=NOTIFIED", middleware.RoleAdmin, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var count CountResponse
	require.NoError(t, json.Unmarshal(resp.Data, &count))
	assert.Equal(t, 1, count.Count)

	// the offered user accepts
	rec, resp = env.do(t, http.MethodPost, fmt.Sprintf("/waitlist/entries/%s/respond", entries[3].ID), middleware.RoleUser, entries[3].UserID, map[string]bool{"accept": true})
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)

	// someone else cannot answer for them
	rec, _ = env.do(t, http.MethodPost, fmt.Sprintf("/waitlist/entries/%s/respond", entries[2].ID), middleware.RoleUser, uuid.New(), map[string]bool{"accept": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp = env.do(t, http.MethodPost, base+"/auto-promote", middleware.RoleAdmin, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	var auto AutoPromoteResponse
	require.NoError(t, json.Unmarshal(resp.Data, &auto))
	assert.Equal(t, 2, auto.Promoted)

	rec, resp = env.do(t, http.MethodGet, base+"/stats", middleware.RoleAdmin, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats Stats
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 2, stats.ByStatus[StatusAccepted])

	rec, resp = env.do(t, http.MethodPost, base+"/promote", middleware.RoleAdmin, admin, PromoteRequest{UserID: entries[3].UserID})
	require.Equal(t, http.StatusOK, rec.Code)
	var promoted PromoteResponse
	require.NoError(t, json.Unmarshal(resp.Data, &promoted))
	assert.False(t, promoted.Promoted)
}

func TestController_ExpireOffers(t *testing.T) {
	env := newControllerEnv(t)
	eventID := env.events.add(10)
	env.join(t, eventID, 1)

	_, err := env.service.NotifyWaitlistForAvailableSlots(context.Background(), eventID, 1, 1)
	require.NoError(t, err)

	rec, _ := env.do(t, http.MethodPost, "/admin/waitlist/expire", middleware.RoleUser, uuid.New(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp := env.do(t, http.MethodPost, "/admin/waitlist/expire", middleware.RoleAdmin, uuid.New(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var expired ExpireResponse
	require.NoError(t, json.Unmarshal(resp.Data, &expired))
	// the controller sweeps at wall-clock time, long after the test clock's deadline
	assert.Len(t, expired.Expired, 1)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{eventNotFound(uuid.New()), http.StatusNotFound},
		{ErrDuplicateActiveEntry, http.StatusConflict},
		{ErrAlreadyRegistered, http.StatusConflict},
		{transitionError(StatusWaiting, StatusExpired), http.StatusConflict},
		{ErrOfferExpired, http.StatusConflict},
		{ErrWaitlistFull, http.StatusConflict},
		{ErrInvalidReorder, http.StatusBadRequest},
		{ErrValidation, http.StatusBadRequest},
		{ErrLockTimeout, http.StatusServiceUnavailable},
		{errStoreDown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
