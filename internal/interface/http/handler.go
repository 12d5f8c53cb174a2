package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tborlee/points-verts-web/internal/domain/walks"
)

// Handler wires the HTTP transport to the walks service.
type Handler struct {
	walksSvc walks.Service
	logger   *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(walksSvc walks.Service, logger *slog.Logger) *Handler {
	return &Handler{
		walksSvc: walksSvc,
		logger:   logger.With("component", "http.handler"),
	}
}

// Health answers liveness checks.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Dates lists the event dates known upstream.
func (h *Handler) Dates(c *gin.Context) {
	dates, err := h.walksSvc.Dates(c.Request.Context())
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dates": dates})
}

// Walks resolves a date and returns its ranked walk list in one call.
func (h *Handler) Walks(c *gin.Context) {
	lat, err := optionalFloat(c.Query("lat"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, walks.CodeInvalidInput, "lat must be a number", err))
		return
	}
	lon, err := optionalFloat(c.Query("lon"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, walks.CodeInvalidInput, "lon must be a number", err))
		return
	}

	model, err := h.walksSvc.Rank(c.Request.Context(), walks.RankRequest{
		Date:      c.Query("date"),
		Latitude:  lat,
		Longitude: lon,
	})
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, model)
}

// OpenSession starts a listing session. The body is optional.
func (h *Handler) OpenSession(c *gin.Context) {
	var req walks.OpenRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	view, err := h.walksSvc.OpenSession(c.Request.Context(), req)
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetSession returns the current read model of a session.
func (h *Handler) GetSession(c *gin.Context) {
	view, err := h.walksSvc.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CloseSession discards a session when the visitor navigates away.
func (h *Handler) CloseSession(c *gin.Context) {
	if err := h.walksSvc.CloseSession(c.Request.Context(), c.Param("id")); err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Navigate moves a session to the previous or next event date.
func (h *Handler) Navigate(c *gin.Context) {
	var req walks.NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	view, err := h.walksSvc.Navigate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ProvideLocation reports the outcome of the device location prompt.
func (h *Handler) ProvideLocation(c *gin.Context) {
	var req walks.LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	view, err := h.walksSvc.ProvideLocation(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CacheStats reports snapshot cache counters.
func (h *Handler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.walksSvc.CacheStats())
}

func abortWithDomainError(c *gin.Context, err error) {
	abortWithError(c, fromDomainError(err))
}

func optionalFloat(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
