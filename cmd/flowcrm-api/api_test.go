package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukex/flowcrm/pkg/auth"
	"github.com/dukex/flowcrm/pkg/persistence/file"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) (*fiber.App, *auth.Issuer) {
	t.Helper()

	issuer, err := auth.NewIssuer([]byte("test-secret"), "flowcrm-api", time.Hour)
	require.NoError(t, err)

	api := NewAPI(slog.New(slog.DiscardHandler), file.NewPersistence(t.TempDir()), issuer, nil, nil)

	return api.App(), issuer
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return string(body)
}

func TestAPI_RootEndpoint(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "flowcrm API", readBody(t, resp))
}

func TestAPI_HealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", readBody(t, resp))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"status":"healthy"`)
}

func TestAPI_Metrics(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "go_goroutines")
}

func TestAPI_WorkflowsRequireToken(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/workflows", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_CreateAndListWorkflows(t *testing.T) {
	app, issuer := setupTestApp(t)

	token, err := issuer.Issue(3, 12)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"name":       "Assign hot deals",
		"entityType": "DEAL",
		"trigger":    map[string]any{"name": "EVENT", "triggerFrequency": "UPDATED"},
		"condition": map[string]any{
			"conditionType": "CONDITION_BASED",
			"conditions": []map[string]any{
				{"operator": "GREATER", "name": "estimatedValue.value", "value": 1000},
			},
		},
		"actions": []map[string]any{
			{"type": "REASSIGN", "payload": map[string]any{"ownerId": 300, "name": "Ana"}},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/workflows", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, readBody(t, resp))

	req = httptest.NewRequest(http.MethodGet, "/workflows", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	listed := readBody(t, resp)
	assert.True(t, strings.Contains(listed, `"totalCount":1`), listed)
	assert.Contains(t, listed, "Assign hot deals")
}
