package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/acc"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/auth"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/config"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/folder"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/permission"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/subject"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/http/handler"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/infra/cache"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/reconcile"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/store"
	apperrors "github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/errors"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/metrics"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validToken = "good-token"

type stubAPI struct{}

func (stubAPI) Hubs(ctx context.Context) ([]acc.Hub, error) {
	return []acc.Hub{{ID: "b.h1", Name: "Hub"}}, nil
}

func (stubAPI) Projects(ctx context.Context, hubID string) ([]acc.Project, error) {
	return nil, nil
}

func (stubAPI) TopFolders(ctx context.Context, hubID, projectID string) ([]folder.Node, error) {
	return nil, nil
}

func (stubAPI) FolderContents(ctx context.Context, projectID, folderID string) ([]folder.Node, error) {
	return nil, nil
}

func (stubAPI) GetFolderPermissions(ctx context.Context, projectID, folderID string) ([]permission.LivePermission, error) {
	return nil, nil
}

func (stubAPI) BatchCreate(ctx context.Context, projectID, folderID string, items []permission.MutationItem) ([]permission.MutationResult, error) {
	return nil, nil
}

func (stubAPI) BatchUpdate(ctx context.Context, projectID, folderID string, items []permission.MutationItem) ([]permission.MutationResult, error) {
	return nil, nil
}

func (stubAPI) BatchDelete(ctx context.Context, projectID, folderID string, items []permission.MutationItem) ([]permission.MutationResult, error) {
	return nil, nil
}

func (stubAPI) ProjectUsers(ctx context.Context, projectID string) ([]subject.ProjectUser, error) {
	return nil, nil
}

type stubRunner struct{}

func (stubRunner) Run(ctx context.Context, req reconcile.RunRequest) (*reconcile.Summary, error) {
	return &reconcile.Summary{Errors: []string{}}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	profile := func(ctx context.Context, token string) (*acc.Profile, error) {
		if token != validToken {
			return nil, apperrors.Unauthorized("bad token")
		}
		return &acc.Profile{UserID: "OP1", Email: "op@x.com"}, nil
	}
	resolver := auth.NewResolver(profile, auth.NewMemoryIdentityCache(cache.NewTTL[auth.Operator]()), time.Minute)

	return NewServer(&ServerDependencies{
		Config: &config.Config{
			RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		},
		API:            func(token string) handler.ProjectAPI { return stubAPI{} },
		Documents:      store.NewMemoryStore(),
		Sync:           stubRunner{},
		AuthMiddleware: auth.NewMiddleware(resolver),
		Metrics:        metrics.New(),
	})
}

func serve(s *Server, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServerRoutes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics/requests", "", http.StatusOK},
		{"hubs without token", http.MethodGet, "/api/hubs", "", http.StatusUnauthorized},
		{"hubs with bad token", http.MethodGet, "/api/hubs", "nope", http.StatusUnauthorized},
		{"hubs", http.MethodGet, "/api/hubs", validToken, http.StatusOK},
		{"users", http.MethodGet, "/api/projects/p1/users", validToken, http.StatusOK},
		{"folder permissions", http.MethodGet, "/api/projects/p1/folders/f1/permissions", validToken, http.StatusOK},
		{"check", http.MethodGet, "/api/check-folder-permissions/b.h1/p1", validToken, http.StatusOK},
		{"load missing", http.MethodGet, "/api/load-folder-permissions/b.h1/p1", validToken, http.StatusNotFound},
		{"sync", http.MethodPost, "/api/sync-folder-permissions/b.h1/p1", validToken, http.StatusOK},
		{"unknown route", http.MethodGet, "/api/nothing", validToken, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, tt.method, tt.path, tt.token)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
		})
	}
}

func TestServerProfilingIsOptIn(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/metrics/memory", "").Code)
}

func TestServerSyncRateLimit(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 3; i++ {
		rec := serve(s, http.MethodPost, "/api/sync-folder-permissions/b.h1/p1", validToken)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := serve(s, http.MethodPost, "/api/sync-folder-permissions/b.h1/p1", validToken)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCustomHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"echo error", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization token"), http.StatusUnauthorized, "missing authorization token"},
		{"sync in progress", fmt.Errorf("acquire: %w", apperrors.ErrSyncInProgress), http.StatusConflict, "Sync already in progress"},
		{"not found", apperrors.ErrNotFound, http.StatusNotFound, "Resource not found"},
		{"expired", apperrors.Expired("token expired"), http.StatusUnauthorized, "token expired"},
		{"validation keeps message", apperrors.Validation("hubId is required"), http.StatusBadRequest, "hubId is required"},
		{"network", fmt.Errorf("get users: %w", apperrors.ErrNetwork), http.StatusBadGateway, "Upstream API request failed"},
		{"internal is hidden", errors.New("pq: password authentication failed"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.Response().Header().Set(echo.HeaderXRequestID, "req-1")

			CustomHTTPErrorHandler(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantMessage, body["message"])
			assert.Equal(t, "req-1", body["request_id"])
		})
	}
}
