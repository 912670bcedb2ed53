package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"MarketBrief/internal/domain/models"
	domrepo "MarketBrief/internal/domain/repository"
	"MarketBrief/internal/usecase"
	"MarketBrief/pkg/cache"
	xhttp "MarketBrief/pkg/http"
	xlogger "MarketBrief/pkg/logger"
	"MarketBrief/pkg/queue"
	"MarketBrief/pkg/util"

	"github.com/labstack/echo/v4"
)

// ReportsHandler exposes report runs over HTTP: synchronous execution,
// queue-backed async execution, and retrieval of stored reports.
type ReportsHandler struct {
	logger   *xlogger.Logger
	run      *usecase.ReportRun
	blobs    domrepo.BlobStore
	queue    queue.QueueService
	pastDays int
}

func NewReportsHandler(lgr *xlogger.Logger, run *usecase.ReportRun, blobs domrepo.BlobStore, pastDays int) *ReportsHandler {
	return &ReportsHandler{logger: lgr, run: run, blobs: blobs, pastDays: pastDays}
}

// WithQueue enables the async endpoint. Without it the endpoint reports 503.
func (h *ReportsHandler) WithQueue(q queue.QueueService) *ReportsHandler {
	h.queue = q
	return h
}

func (h *ReportsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	g := e.Group("/api")
	g.POST("/reports", h.Create)
	g.POST("/reports/async", h.CreateAsync)
	g.GET("/reports/:ticker", h.Get)
}

func (h *ReportsHandler) Create(c echo.Context) error {
	req := &models.RunInput{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	record, err := h.run.Run(c.Request().Context(), *req)
	if err != nil {
		h.logger.Error("report run error",
			xlogger.String("ticker", req.CompanyTicker),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, record)
}

func (h *ReportsHandler) CreateAsync(c echo.Context) error {
	if h.queue == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "async runs require queue mode",
		})
	}

	req := &models.RunInput{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := h.queue.PublishMessage(c.Request().Context(), usecase.ReportJobType, req); err != nil {
		h.logger.Error("report enqueue error",
			xlogger.String("ticker", req.CompanyTicker),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, map[string]string{
		"status": "queued",
		"ticker": req.CompanyTicker,
	})
}

// Get serves the most recent stored report for a ticker. The lookup window
// defaults to the configured past days and can be overridden with
// ?past_days=N.
func (h *ReportsHandler) Get(c echo.Context) error {
	ticker := c.Param("ticker")
	if ticker == "" {
		return xhttp.BadRequestResponse(c, "ticker is required")
	}

	pastDays := h.pastDays
	if raw := c.QueryParam("past_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 365 {
			return xhttp.BadRequestResponse(c, "past_days must be an integer in [1, 365]")
		}
		pastDays = n
	}

	startDate, endDate := util.LookbackWindow(time.Now(), pastDays)
	key := fmt.Sprintf("market_report_%s_%s_%s.md", ticker, startDate, endDate)

	body, err := h.blobs.Get(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return xhttp.NotFoundResponse(c, "no stored report for "+ticker)
		}
		h.logger.Error("report lookup error",
			xlogger.String("key", key),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", body)
}
