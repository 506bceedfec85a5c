//go:build api

// Package api contains tests that run against a real backend server.
// Run with: go test -tags=api ./tests/api/... -v
// Requires backend to be running on localhost:8080
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	defaultBaseURL = "http://localhost:8080"
	defaultAPIKey  = "test-api-key-for-development-only-32chars"
)

// APITestSuite is the test suite for real API endpoint testing
type APITestSuite struct {
	suite.Suite
	baseURL string
	apiKey  string
	client  *http.Client

	// Test data IDs for cleanup
	createdDomainIDs []uint
}

func TestAPIEndpoints(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func (s *APITestSuite) SetupSuite() {
	s.baseURL = os.Getenv("API_BASE_URL")
	if s.baseURL == "" {
		s.baseURL = defaultBaseURL
	}

	s.apiKey = os.Getenv("API_KEY")
	if s.apiKey == "" {
		s.apiKey = defaultAPIKey
	}

	s.client = &http.Client{
		Timeout: 30 * time.Second,
	}

	// Verify server is running
	resp, err := s.client.Get(s.baseURL + "/health")
	require.NoError(s.T(), err, "Backend server must be running on %s", s.baseURL)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode, "Health check should return 200")
}

func (s *APITestSuite) TearDownSuite() {
	for _, id := range s.createdDomainIDs {
		s.deleteResource(fmt.Sprintf("/api/domains/%d?force=true", id))
	}
}

// Helper methods
func (s *APITestSuite) doRequest(method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, s.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	return s.client.Do(req)
}

func (s *APITestSuite) deleteResource(path string) {
	resp, _ := s.doRequest(http.MethodDelete, path, nil)
	if resp != nil {
		resp.Body.Close()
	}
}

func (s *APITestSuite) parseResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, target)
}

// =============================================================================
// HEALTH ENDPOINTS
// =============================================================================

func (s *APITestSuite) TestHealth_ReturnsHealthy() {
	resp, err := s.client.Get(s.baseURL + "/health")
	require.NoError(s.T(), err)

	var result struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	require.NoError(s.T(), s.parseResponse(resp, &result))
	assert.Equal(s.T(), "healthy", result.Status)
	assert.NotEmpty(s.T(), result.Services["transport"])
}

func (s *APITestSuite) TestReady_ReturnsReady() {
	resp, err := s.client.Get(s.baseURL + "/ready")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var result map[string]interface{}
	require.NoError(s.T(), s.parseResponse(resp, &result))
	assert.Equal(s.T(), "ready", result["status"])
}

func (s *APITestSuite) TestMetrics_Exposed() {
	resp, err := s.client.Get(s.baseURL + "/metrics")
	require.NoError(s.T(), err)
	defer resp.Body.Close()

	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)
	assert.Contains(s.T(), string(body), "go_goroutines")
}

// =============================================================================
// AUTH
// =============================================================================

func (s *APITestSuite) TestAPI_RequiresKey() {
	resp, err := s.client.Get(s.baseURL + "/api/messages")
	require.NoError(s.T(), err)
	resp.Body.Close()
	assert.Equal(s.T(), http.StatusUnauthorized, resp.StatusCode)
}

func (s *APITestSuite) TestWebhook_RequiresProviderCredentials() {
	resp, err := s.client.Post(s.baseURL+"/postmark/inbound", "application/json", bytes.NewBufferString(`{}`))
	require.NoError(s.T(), err)
	resp.Body.Close()
	assert.Equal(s.T(), http.StatusForbidden, resp.StatusCode)
}

// =============================================================================
// DOMAIN ENDPOINTS
// =============================================================================

func (s *APITestSuite) TestDomain_CRUD_Flow() {
	// CREATE
	createReq := map[string]interface{}{
		"name":      fmt.Sprintf("test-%d.com", time.Now().UnixNano()),
		"is_active": true,
	}

	resp, err := s.doRequest(http.MethodPost, "/api/domains", createReq)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), http.StatusCreated, resp.StatusCode)

	var createResult struct {
		Success bool `json:"success"`
		Data    struct {
			ID       uint   `json:"id"`
			Name     string `json:"name"`
			IsActive bool   `json:"is_active"`
		} `json:"data"`
	}
	require.NoError(s.T(), s.parseResponse(resp, &createResult))
	assert.True(s.T(), createResult.Success)
	assert.NotZero(s.T(), createResult.Data.ID)
	assert.Equal(s.T(), createReq["name"], createResult.Data.Name)

	domainID := createResult.Data.ID
	s.createdDomainIDs = append(s.createdDomainIDs, domainID)

	// UPDATE
	resp, err = s.doRequest(http.MethodPut, fmt.Sprintf("/api/domains/%d", domainID), map[string]interface{}{"is_active": false})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var updateResult struct {
		Data struct {
			IsActive bool `json:"is_active"`
		} `json:"data"`
	}
	require.NoError(s.T(), s.parseResponse(resp, &updateResult))
	assert.False(s.T(), updateResult.Data.IsActive)

	// DUPLICATE
	resp, err = s.doRequest(http.MethodPost, "/api/domains", createReq)
	require.NoError(s.T(), err)
	resp.Body.Close()
	assert.Equal(s.T(), http.StatusConflict, resp.StatusCode)

	// DELETE
	resp, err = s.doRequest(http.MethodDelete, fmt.Sprintf("/api/domains/%d", domainID), nil)
	require.NoError(s.T(), err)
	resp.Body.Close()
	assert.Equal(s.T(), http.StatusNoContent, resp.StatusCode)

	resp, err = s.doRequest(http.MethodGet, fmt.Sprintf("/api/domains/%d", domainID), nil)
	require.NoError(s.T(), err)
	resp.Body.Close()
	assert.Equal(s.T(), http.StatusNotFound, resp.StatusCode)
}

func (s *APITestSuite) TestDomain_InvalidName() {
	resp, err := s.doRequest(http.MethodPost, "/api/domains", map[string]interface{}{"name": "not a domain"})
	require.NoError(s.T(), err)
	resp.Body.Close()
	assert.Equal(s.T(), http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// AUDIT LOG AND ADDRESSES
// =============================================================================

func (s *APITestSuite) TestMessages_ListAndStats() {
	resp, err := s.doRequest(http.MethodGet, "/api/messages?limit=5", nil)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var list struct {
		Success bool              `json:"success"`
		Data    []json.RawMessage `json:"data"`
		Meta    struct {
			Limit int `json:"limit"`
		} `json:"meta"`
	}
	require.NoError(s.T(), s.parseResponse(resp, &list))
	assert.True(s.T(), list.Success)
	assert.Equal(s.T(), 5, list.Meta.Limit)
	assert.LessOrEqual(s.T(), len(list.Data), 5)

	resp, err = s.doRequest(http.MethodGet, "/api/messages/stats", nil)
	require.NoError(s.T(), err)
	resp.Body.Close()
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
}

func (s *APITestSuite) TestMessages_InvalidReason() {
	resp, err := s.doRequest(http.MethodGet, "/api/messages?reason=bounced", nil)
	require.NoError(s.T(), err)
	resp.Body.Close()
	assert.Equal(s.T(), http.StatusBadRequest, resp.StatusCode)
}

func (s *APITestSuite) TestAddresses_List() {
	resp, err := s.doRequest(http.MethodGet, "/api/addresses?blocked=false", nil)
	require.NoError(s.T(), err)
	resp.Body.Close()
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
}

func (s *APITestSuite) TestAddresses_BlockUnknown() {
	resp, err := s.doRequest(http.MethodPost, "/api/addresses/999999999/block", nil)
	require.NoError(s.T(), err)
	resp.Body.Close()
	assert.Equal(s.T(), http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// RELAY ADDRESSES
// =============================================================================

func (s *APITestSuite) TestReplyAddress_DecodeRejectsGarbage() {
	resp, err := s.doRequest(http.MethodPost, "/api/reply-addresses/decode", map[string]string{
		"relay_address": "reply@notatoken.example.invalid",
	})
	require.NoError(s.T(), err)

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(s.T(), s.parseResponse(resp, &result))
	assert.Equal(s.T(), http.StatusBadRequest, resp.StatusCode)
	assert.False(s.T(), result.Success)
	assert.Contains(s.T(), result.Error, "invalid relay address")
}
