// internal/handlers/verification_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// The invalid-request paths must reject before touching any service, so a
// handler with nil dependencies is sufficient.
func newBareVerificationRouter() *gin.Engine {
	h := NewVerificationHandler(nil, nil)
	r := gin.New()
	r.POST("/v1/verify", h.VerifyScan)
	r.POST("/v1/verify/mobile", h.MobileScan)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestVerifyScanRejectsMissingCode(t *testing.T) {
	r := newBareVerificationRouter()

	w := postJSON(t, r, "/v1/verify", map[string]interface{}{
		"device_fingerprint": "device-1",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
}

func TestVerifyScanRejectsMalformedBody(t *testing.T) {
	r := newBareVerificationRouter()

	req := httptest.NewRequest(http.MethodPost, "/v1/verify", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyScanRejectsOutOfRangeCoordinates(t *testing.T) {
	r := newBareVerificationRouter()

	w := postJSON(t, r, "/v1/verify", map[string]interface{}{
		"code":     "TC-ABC123",
		"latitude": 120.0,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMobileScanRejectsMissingCode(t *testing.T) {
	r := newBareVerificationRouter()

	w := postJSON(t, r, "/v1/verify/mobile", map[string]interface{}{
		"image_data": "data:image/jpeg;base64,/9j/4AAQ",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
