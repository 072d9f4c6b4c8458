// Package handler exposes the risk matrix over HTTP.
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oremia/risk-matrix/internal/ingest"
	"github.com/oremia/risk-matrix/internal/matrix/model"
	"github.com/oremia/risk-matrix/internal/matrix/service"
	"go.uber.org/zap"
)

// MatrixHandler handles HTTP requests against the active risk model.
type MatrixHandler struct {
	store         *service.Store
	uploadLimiter gin.HandlerFunc // nil = no dedicated configure rate limit
	logger        *zap.Logger
}

// NewMatrixHandler creates a new MatrixHandler.
func NewMatrixHandler(store *service.Store, logger *zap.Logger) *MatrixHandler {
	return &MatrixHandler{store: store, logger: logger}
}

// SetUploadRateLimiter installs a dedicated rate limit on the configure
// route, typically UploadRateLimiter.
func (h *MatrixHandler) SetUploadRateLimiter(mw gin.HandlerFunc) {
	h.uploadLimiter = mw
}

// uploadLimit returns the configure rate limit middleware when one is set,
// or a no-op middleware.
func (h *MatrixHandler) uploadLimit() gin.HandlerFunc {
	if h.uploadLimiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return h.uploadLimiter
}

// Register registers all risk matrix routes on the given router group.
func (h *MatrixHandler) Register(rg *gin.RouterGroup) {
	rm := rg.Group("/risk-matrix")
	{
		rm.POST("/configure", h.uploadLimit(), h.Configure)
		rm.GET("/levels", h.Levels)
		rm.POST("/assess", h.Assess)
		rm.GET("/visualize", h.Visualize)
	}
}

// Configure handles POST /risk-matrix/configure. It accepts a multipart
// workbook upload, builds a candidate model off to the side, and installs it
// only after the whole dataset validated. Any failure leaves the active model
// untouched.
func (h *MatrixHandler) Configure(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}

	src, err := fh.Open()
	if err != nil {
		h.logger.Error("open upload", zap.Error(err))
		configReloadsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected error while reading the uploaded file"})
		return
	}
	defer src.Close() //nolint:errcheck

	data, err := io.ReadAll(src)
	if err != nil {
		h.logger.Error("read upload", zap.Error(err))
		configReloadsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected error while reading the uploaded file"})
		return
	}

	rows, err := ingest.ParseWorkbook(fh.Filename, data)
	if err != nil {
		h.rejectConfigure(c, fh.Filename, err)
		return
	}

	candidate, err := service.BuildModel(rows)
	if err != nil {
		h.rejectConfigure(c, fh.Filename, err)
		return
	}

	rev := h.store.Replace(candidate)
	configReloadsTotal.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{
		"message":  "风险模型配置已成功更新",
		"revision": rev.String(),
	})
}

// rejectConfigure maps load failures onto status codes: everything the client
// can fix (file type, header shape, row contents, missing row types) is a
// 400; anything else is a 500 reported generically.
func (h *MatrixHandler) rejectConfigure(c *gin.Context, filename string, err error) {
	switch {
	case errors.Is(err, ingest.ErrUnsupportedFile),
		errors.Is(err, ingest.ErrMissingColumns),
		errors.Is(err, ingest.ErrMalformedRow),
		errors.Is(err, service.ErrIncompleteConfig):
		configReloadsTotal.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("parse uploaded workbook", zap.String("filename", filename), zap.Error(err))
		configReloadsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected error while processing the uploaded file"})
	}
}

// Levels handles GET /risk-matrix/levels.
func (h *MatrixHandler) Levels(c *gin.Context) {
	m := h.store.Current()
	c.JSON(http.StatusOK, gin.H{
		"probability": m.Probability,
		"severity":    m.Severity,
	})
}

// AssessRequest is the body of POST /risk-matrix/assess.
type AssessRequest struct {
	Probability string `json:"probability" binding:"required"`
	Severity    string `json:"severity" binding:"required"`
}

// Assess handles POST /risk-matrix/assess.
func (h *MatrixHandler) Assess(c *gin.Context) {
	var req AssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must include probability and severity"})
		return
	}

	a, err := h.store.Current().Assess(req.Probability, req.Severity)
	if err != nil {
		if errors.Is(err, model.ErrUnknownLevel) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("assess", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assessment failed"})
		return
	}

	assessmentsTotal.WithLabelValues(a.RiskLevel).Inc()
	c.JSON(http.StatusOK, gin.H{
		"risk_value": a.RiskValue,
		"risk_level": a.RiskLevel,
	})
}

// Visualize handles GET /risk-matrix/visualize.
func (h *MatrixHandler) Visualize(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Current().Visualize())
}
