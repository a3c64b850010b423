package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"emperror.dev/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker(t *testing.T) {
	hc := NewHealthChecker()
	status, _ := hc.GetStatus()
	assert.Equal(t, HealthStatusUnknown, status)

	failing := errors.New("disk full")
	hc.RegisterCheck("ok", func(ctx context.Context) error { return nil })
	hc.RegisterCheck("broken", func(ctx context.Context) error { return failing })

	failed := hc.RunAllChecks(context.Background())
	assert.Equal(t, map[string]error{"broken": failing}, failed)

	status, checks := hc.GetStatus()
	assert.Equal(t, HealthStatusUnhealthy, status)
	assert.Equal(t, HealthStatusHealthy, checks["ok"].Status)
	assert.Equal(t, "disk full", checks["broken"].Message)
	assert.Nil(t, checks["broken"].CheckFunc)

	assert.Error(t, hc.RunCheck(context.Background(), "missing"))
}

func TestFilerHealthCheck(t *testing.T) {
	fm, site := newTestSite(t)
	check := FilerHealthCheck(fm)
	require.NoError(t, check(context.Background()))

	require.NoError(t, os.RemoveAll(filepath.Join(site, FilerDirectory)))
	assert.Error(t, check(context.Background()))

	fm.RemoveDirectory(FilerDirectory)
	assert.Error(t, check(context.Background()))
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fm, _ := newTestSite(t)

	hc := NewHealthChecker()
	hc.RegisterCheck("file_manager", FileManagerHealthCheck(fm))
	hc.RegisterCheck("filer", FilerHealthCheck(fm))

	engine := gin.New()
	engine.GET(HealthRoute, hc.HealthHandler())

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, HealthRoute, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status HealthStatus            `json:"status"`
		Checks map[string]*HealthCheck `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, HealthStatusHealthy, body.Status)
	assert.Len(t, body.Checks, 2)

	hc.RegisterCheck("plugins", PluginManagerHealthCheck(NewPluginManager()))
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, HealthRoute, nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
