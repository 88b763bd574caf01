package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jinford/repo-insight/internal/core/analysis"
	"github.com/jinford/repo-insight/internal/core/job"
)

// Handlers はHTTPハンドラ群を保持する
type Handlers struct {
	jobService *job.Service
	query      *job.Query
	backends   []BackendView
	logger     *slog.Logger
}

type handlersOptions struct {
	logger *slog.Logger
}

// HandlersOption は Handlers のオプション設定
type HandlersOption func(*handlersOptions)

// WithHandlersLogger はロガーを設定する
func WithHandlersLogger(logger *slog.Logger) HandlersOption {
	return func(o *handlersOptions) {
		o.logger = logger
	}
}

// NewHandlers は新しい Handlers を作成する
func NewHandlers(jobService *job.Service, query *job.Query, backends []BackendView, opts ...HandlersOption) *Handlers {
	options := &handlersOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &Handlers{
		jobService: jobService,
		query:      query,
		backends:   backends,
		logger:     options.logger,
	}
}

// BackendView は分析種別ごとのバックエンド設定状況を表す
type BackendView struct {
	Type       analysis.Type `json:"type"`
	Configured bool          `json:"configured"`
	Model      string        `json:"model,omitempty"`
	KeyPreview string        `json:"key_preview,omitempty"`
}

// NewBackendViews は設定状況ビューを分析種別の定義順で構築する
func NewBackendViews(svc *analysis.Service, keys map[analysis.Type]string) []BackendView {
	views := make([]BackendView, 0, len(analysis.All()))
	for _, t := range analysis.All() {
		view := BackendView{
			Type:       t,
			Configured: svc.Configured(t),
		}
		if view.Configured {
			view.Model = svc.ModelFor(t)
			view.KeyPreview = maskKey(keys[t])
		}
		views = append(views, view)
	}
	return views
}

// maskKey はAPIキーの先頭と末尾だけを残してマスクする
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "..." + key[len(key)-4:]
}

type submitRequest struct {
	RepoURL string `json:"repo_url" binding:"required"`
}

type submitResponse struct {
	JobID  uuid.UUID  `json:"job_id"`
	Status job.Status `json:"status"`
}

// SubmitAnalysisHandler は POST /api/analyses を処理する
func (h *Handlers) SubmitAnalysisHandler(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	accepted, err := h.jobService.Submit(c.Request.Context(), req.RepoURL)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrInvalidLocator):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, job.ErrDuplicateSubmission):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logger.Error("ジョブの受理に失敗", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to accept analysis job"})
		}
		return
	}

	c.JSON(http.StatusAccepted, submitResponse{
		JobID:  accepted.ID,
		Status: accepted.Status,
	})
}

// GetStatusHandler は GET /api/analyses/:id/status を処理する
func (h *Handlers) GetStatusHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	view, err := h.query.Status(id)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		h.logger.Error("ステータスの取得に失敗", "jobID", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job status"})
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetResultHandler は GET /api/analyses/:id/result を処理する
func (h *Handlers) GetResultHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	var types []analysis.Type
	for _, raw := range c.QueryArray("type") {
		t, err := analysis.ParseType(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		types = append(types, t)
	}

	view, err := h.query.Result(id, types...)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		h.logger.Error("結果の取得に失敗", "jobID", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job result"})
		return
	}

	c.JSON(http.StatusOK, view)
}

// ListBackendsHandler は GET /api/backends を処理する
func (h *Handlers) ListBackendsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"backends": h.backends})
}
