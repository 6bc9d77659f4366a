package server

import (
	"errors"
	"net/http"
	"time"

	"asayake/internal/config"
	"asayake/internal/ledger"

	"github.com/gin-gonic/gin"
)

// LedgerHandler は台帳APIのエンドポイントを実装する
type LedgerHandler struct {
	config *config.Config
	ledger *ledger.Ledger
}

// registerRoutes はHTTPルートを設定する
func (h *LedgerHandler) registerRoutes(engine *gin.Engine) {
	engine.GET("/health", h.HealthCheck)

	api := engine.Group("/api")
	{
		api.GET("/status", h.GetStatus)

		api.POST("/sessions", h.CreateSession)
		api.GET("/sessions/stale", h.GetStaleSessions)
		api.GET("/sessions/:id", h.GetSession)
		api.GET("/sessions/:id/captures", h.GetCaptures)
		api.POST("/sessions/:id/claim", h.ClaimSession)
		api.POST("/sessions/:id/complete", h.MarkComplete)
		api.POST("/sessions/:id/timelapse-generated", h.MarkTimelapseGenerated)

		api.POST("/captures", h.RecordCapture)

		api.GET("/activity", h.GetWasActive)
		api.PUT("/activity", h.UpdateWasActive)

		api.POST("/timelapses", h.RecordTimelapse)
		api.GET("/timelapses", h.GetTimelapses)
	}
}

// ErrorResponse はエラー応答の共通形式
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse はヘルスチェックの応答
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse はシステム状態の応答
type StatusResponse struct {
	Status    string         `json:"status"`
	Server    ServerInfo     `json:"server"`
	Counts    *ledger.Counts `json:"counts"`
	Timestamp time.Time      `json:"timestamp"`
}

// ServerInfo はサーバーの待ち受け情報
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// writeLedgerError は台帳エラーをHTTPステータスに変換する
func writeLedgerError(c *gin.Context, err error) {
	var (
		status int
		code   string
	)
	switch {
	case errors.Is(err, ledger.ErrValidation):
		status, code = http.StatusBadRequest, "invalid_session_key"
	case errors.Is(err, ledger.ErrNotFound):
		status, code = http.StatusNotFound, "session_not_found"
	case errors.Is(err, ledger.ErrBusy):
		status, code = http.StatusServiceUnavailable, "ledger_busy"
	default:
		status, code = http.StatusInternalServerError, "internal_error"
	}

	c.JSON(status, ErrorResponse{
		Error:     code,
		Message:   err.Error(),
		Timestamp: time.Now(),
	})
}

// writeBindError はリクエスト解析エラーを返す
func writeBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:     "invalid_request",
		Message:   "リクエストの解析に失敗しました: " + err.Error(),
		Timestamp: time.Now(),
	})
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *LedgerHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// GetStatus はシステム状態取得エンドポイントの実装
func (h *LedgerHandler) GetStatus(c *gin.Context) {
	counts, err := h.ledger.GetCounts(c.Request.Context())
	if err != nil {
		writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, StatusResponse{
		Status: "running",
		Server: ServerInfo{
			Host: h.config.Server.Host,
			Port: h.config.Server.Port,
		},
		Counts:    counts,
		Timestamp: time.Now(),
	})
}

// CreateSessionRequest はセッション作成のリクエスト
type CreateSessionRequest struct {
	Profile  string `json:"profile" binding:"required"`
	Date     string `json:"date" binding:"required"`
	Schedule string `json:"schedule" binding:"required"`
}

// CreateSession はセッションの取得・作成エンドポイントの実装
// 同じ自然キーで何度呼ばれても同一のセッションを返す
func (h *LedgerHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	sess, err := h.ledger.GetOrCreateSession(c.Request.Context(), req.Profile, req.Date, req.Schedule)
	if err != nil {
		writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, sess)
}

// GetSession はセッション取得エンドポイントの実装
func (h *LedgerHandler) GetSession(c *gin.Context) {
	sess, err := h.ledger.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// GetCaptures はセッションの撮影イベント一覧エンドポイントの実装
func (h *LedgerHandler) GetCaptures(c *gin.Context) {
	captures, err := h.ledger.GetCaptures(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"captures": captures})
}

// GetStaleSessionsQuery はアイドルセッション検索のクエリ
type GetStaleSessionsQuery struct {
	IdleMinutes int `form:"idle_minutes"`
}

// GetStaleSessions はアイドルセッション検索エンドポイントの実装
func (h *LedgerHandler) GetStaleSessions(c *gin.Context) {
	var q GetStaleSessionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBindError(c, err)
		return
	}

	sessions, err := h.ledger.GetStaleSessions(c.Request.Context(), q.IdleMinutes)
	if err != nil {
		writeLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// ClaimSession はセッションクレームエンドポイントの実装
// クレームの成否はレスポンスのclaimedフィールドで返す
func (h *LedgerHandler) ClaimSession(c *gin.Context) {
	claimed, err := h.ledger.ClaimSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"claimed": claimed})
}

// MarkComplete はセッション完了エンドポイントの実装
func (h *LedgerHandler) MarkComplete(c *gin.Context) {
	if err := h.ledger.MarkSessionComplete(c.Request.Context(), c.Param("id")); err != nil {
		writeLedgerError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkTimelapseGenerated は動画生成済みエンドポイントの実装
func (h *LedgerHandler) MarkTimelapseGenerated(c *gin.Context) {
	if err := h.ledger.MarkTimelapseGenerated(c.Request.Context(), c.Param("id")); err != nil {
		writeLedgerError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RecordCaptureRequest は撮影イベントのリクエスト
type RecordCaptureRequest struct {
	SessionID string                 `json:"session_id" binding:"required"`
	Filename  string                 `json:"filename" binding:"required"`
	Timestamp time.Time              `json:"timestamp" binding:"required"`
	Settings  ledger.CaptureSettings `json:"settings"`
	Bracket   ledger.BracketInfo     `json:"bracket"`
}

// RecordCapture は撮影イベント記録エンドポイントの実装
func (h *LedgerHandler) RecordCapture(c *gin.Context) {
	var req RecordCaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	capture, err := h.ledger.RecordCapture(c.Request.Context(),
		req.SessionID, req.Filename, req.Timestamp, req.Settings, req.Bracket)
	if err != nil {
		writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusCreated, capture)
}

// ActivityQuery は稼働フラグ照会のクエリ
type ActivityQuery struct {
	Profile  string `form:"profile" binding:"required"`
	Date     string `form:"date" binding:"required"`
	Schedule string `form:"schedule" binding:"required"`
}

// GetWasActive は稼働フラグ取得エンドポイントの実装
func (h *LedgerHandler) GetWasActive(c *gin.Context) {
	var q ActivityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBindError(c, err)
		return
	}

	active, err := h.ledger.GetWasActive(c.Request.Context(), q.Profile, q.Date, q.Schedule)
	if err != nil {
		writeLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"was_active": active})
}

// UpdateActivityRequest は稼働フラグ更新のリクエスト
type UpdateActivityRequest struct {
	Profile   string `json:"profile" binding:"required"`
	Date      string `json:"date" binding:"required"`
	Schedule  string `json:"schedule" binding:"required"`
	WasActive *bool  `json:"was_active" binding:"required"`
}

// UpdateWasActive は稼働フラグ更新エンドポイントの実装
func (h *LedgerHandler) UpdateWasActive(c *gin.Context) {
	var req UpdateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	err := h.ledger.UpdateWasActive(c.Request.Context(),
		req.Profile, req.Date, req.Schedule, *req.WasActive)
	if err != nil {
		writeLedgerError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RecordTimelapse はタイムラプス記録エンドポイントの実装
func (h *LedgerHandler) RecordTimelapse(c *gin.Context) {
	var rec ledger.TimelapseRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		writeBindError(c, err)
		return
	}

	tl, err := h.ledger.RecordTimelapse(c.Request.Context(), rec)
	if err != nil {
		writeLedgerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tl)
}

// TimelapseQuery はタイムラプス検索のクエリ
type TimelapseQuery struct {
	Profile  string `form:"profile"`
	Schedule string `form:"schedule"`
	Date     string `form:"date"`
	Limit    int    `form:"limit"`
}

// GetTimelapses はタイムラプス検索エンドポイントの実装
func (h *LedgerHandler) GetTimelapses(c *gin.Context) {
	var q TimelapseQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBindError(c, err)
		return
	}

	timelapses, err := h.ledger.GetTimelapses(c.Request.Context(), ledger.TimelapseFilter{
		Profile:  q.Profile,
		Schedule: q.Schedule,
		Date:     q.Date,
		Limit:    q.Limit,
	})
	if err != nil {
		writeLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timelapses": timelapses})
}
