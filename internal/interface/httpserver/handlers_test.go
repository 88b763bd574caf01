package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/repo-insight/internal/core/analysis"
	"github.com/jinford/repo-insight/internal/core/job"
	"github.com/jinford/repo-insight/internal/core/snapshot"
)

type stubPreparer struct {
	validateErr error
	prepareErr  error
	release     chan struct{}
}

func (p *stubPreparer) ValidateLocator(locator string) error {
	return p.validateErr
}

func (p *stubPreparer) Prepare(ctx context.Context, locator string) (*snapshot.Snapshot, error) {
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.prepareErr != nil {
		return nil, p.prepareErr
	}
	return &snapshot.Snapshot{
		Locator:    locator,
		Name:       "repo",
		CommitHash: "abc123",
		TotalFiles: 1,
	}, nil
}

type stubAnalyzer struct{}

func (a *stubAnalyzer) Analyze(ctx context.Context, t analysis.Type, snap *snapshot.Snapshot) (json.RawMessage, error) {
	return json.RawMessage(fmt.Sprintf(`{"report": %q}`, t)), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newTestRouter(t *testing.T, preparer job.Preparer, singleFlight bool) (*gin.Engine, *job.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := job.NewStore(job.WithSingleFlight(singleFlight))
	service := job.NewService(store, preparer, &stubAnalyzer{},
		job.WithJobLogger(testLogger()),
		job.WithRetryPolicy(job.RetryPolicy{MaxAttempts: 1, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond}),
	)
	query := job.NewQuery(store)

	backends := []BackendView{
		{Type: analysis.TypeArchitectureFlow, Configured: true, Model: "gpt-4o-mini", KeyPreview: "sk-t...1234"},
		{Type: analysis.TypeMindMap, Configured: false},
	}

	handlers := NewHandlers(service, query, backends, WithHandlersLogger(testLogger()))
	return NewRouter(handlers), service
}

func performRequest(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitAnalysisHandler(t *testing.T) {
	t.Run("正常系: ジョブを受理して202を返す", func(t *testing.T) {
		router, _ := newTestRouter(t, &stubPreparer{}, false)

		rec := performRequest(router, http.MethodPost, "/api/analyses", []byte(`{"repo_url": "https://github.com/example/repo.git"}`))
		require.Equal(t, http.StatusAccepted, rec.Code)

		var resp submitResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEqual(t, uuid.Nil, resp.JobID)
		assert.Contains(t, []job.Status{job.StatusPending, job.StatusCloning}, resp.Status)
	})

	t.Run("異常系: repo_url がない場合は400を返す", func(t *testing.T) {
		router, _ := newTestRouter(t, &stubPreparer{}, false)

		rec := performRequest(router, http.MethodPost, "/api/analyses", []byte(`{}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("異常系: 不正なロケータは400を返す", func(t *testing.T) {
		router, _ := newTestRouter(t, &stubPreparer{validateErr: fmt.Errorf("bad url")}, false)

		rec := performRequest(router, http.MethodPost, "/api/analyses", []byte(`{"repo_url": "not-a-url"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("異常系: 実行中リポジトリの重複投入は409を返す", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		router, _ := newTestRouter(t, &stubPreparer{release: release}, true)

		body := []byte(`{"repo_url": "https://github.com/example/repo.git"}`)
		first := performRequest(router, http.MethodPost, "/api/analyses", body)
		require.Equal(t, http.StatusAccepted, first.Code)

		second := performRequest(router, http.MethodPost, "/api/analyses", body)
		assert.Equal(t, http.StatusConflict, second.Code)
	})
}

func TestGetStatusHandler(t *testing.T) {
	t.Run("正常系: 完了ジョブのステータスを返す", func(t *testing.T) {
		router, service := newTestRouter(t, &stubPreparer{}, false)

		done, err := service.RunSync(context.Background(), "https://github.com/example/repo.git")
		require.NoError(t, err)

		rec := performRequest(router, http.MethodGet, "/api/analyses/"+done.ID.String()+"/status", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var view job.StatusView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
		assert.Equal(t, done.ID, view.JobID)
		assert.Equal(t, job.StatusCompleted, view.Status)
		assert.Equal(t, float64(1), view.Progress)
		assert.Len(t, view.Tasks, 5)
	})

	t.Run("異常系: 不正なIDは400を返す", func(t *testing.T) {
		router, _ := newTestRouter(t, &stubPreparer{}, false)

		rec := performRequest(router, http.MethodGet, "/api/analyses/not-a-uuid/status", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("異常系: 未知のIDは404を返す", func(t *testing.T) {
		router, _ := newTestRouter(t, &stubPreparer{}, false)

		rec := performRequest(router, http.MethodGet, "/api/analyses/"+uuid.NewString()+"/status", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetResultHandler(t *testing.T) {
	t.Run("正常系: 全レポートを返す", func(t *testing.T) {
		router, service := newTestRouter(t, &stubPreparer{}, false)

		done, err := service.RunSync(context.Background(), "https://github.com/example/repo.git")
		require.NoError(t, err)

		rec := performRequest(router, http.MethodGet, "/api/analyses/"+done.ID.String()+"/result", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var view job.ResultView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
		assert.Equal(t, job.StatusCompleted, view.Status)
		assert.Len(t, view.Reports, 5)
	})

	t.Run("正常系: type クエリで絞り込める", func(t *testing.T) {
		router, service := newTestRouter(t, &stubPreparer{}, false)

		done, err := service.RunSync(context.Background(), "https://github.com/example/repo.git")
		require.NoError(t, err)

		rec := performRequest(router, http.MethodGet, "/api/analyses/"+done.ID.String()+"/result?type=security", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var view job.ResultView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
		require.Len(t, view.Reports, 1)
		assert.Equal(t, analysis.TypeSecurity, view.Reports[0].Type)
	})

	t.Run("異常系: 未知の分析種別は400を返す", func(t *testing.T) {
		router, service := newTestRouter(t, &stubPreparer{}, false)

		done, err := service.RunSync(context.Background(), "https://github.com/example/repo.git")
		require.NoError(t, err)

		rec := performRequest(router, http.MethodGet, "/api/analyses/"+done.ID.String()+"/result?type=unknown", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListBackendsHandler(t *testing.T) {
	router, _ := newTestRouter(t, &stubPreparer{}, false)

	rec := performRequest(router, http.MethodGet, "/api/backends", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Backends []BackendView `json:"backends"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Backends, 2)
	assert.True(t, resp.Backends[0].Configured)
	assert.False(t, resp.Backends[1].Configured)
}

func TestHealthHandler(t *testing.T) {
	router, _ := newTestRouter(t, &stubPreparer{}, false)

	rec := performRequest(router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestMaskKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{name: "空文字", key: "", expected: ""},
		{name: "短いキーは全文字マスク", key: "abc123", expected: "******"},
		{name: "長いキーは先頭と末尾のみ残す", key: "sk-test-abcdef1234", expected: "sk-t...1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, maskKey(tt.key))
		})
	}
}
