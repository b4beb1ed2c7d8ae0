package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	reached := false
	engine.GET("/", func(c *gin.Context) {
		c.Header(RequestIDHeader, "req-42")
		RespondError(c, http.StatusConflict, "already queued", map[string]string{"event_id": "e1"})
	}, func(c *gin.Context) {
		reached = true
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, reached)

	var body StandardApiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, http.StatusConflict, body.StatusCode)
	assert.Equal(t, "already queued", body.Message)
	assert.Equal(t, "req-42", body.RequestID)
	assert.Nil(t, body.Data)
}
