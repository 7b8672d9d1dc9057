package lookup

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"platecheck/lib/scrapers/csgt"
)

// Handler exposes the job service over REST.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.health)

	api := r.Group("/api/v1")
	{
		api.POST("/lookups", h.submitLookup)
		api.GET("/lookups", h.listLookups)
		api.GET("/lookups/:id", h.getLookup)
		api.DELETE("/lookups/:id", h.deleteLookup)
		api.GET("/stats", h.stats)
	}
}

type submitRequest struct {
	Plate      string `json:"plate" binding:"required"`
	Category   string `json:"category"`
	MaxRetries int    `json:"max_retries"`
}

func (h *Handler) submitLookup(c *gin.Context) {
	var payload submitRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	category := csgt.CategoryCar
	if payload.Category != "" {
		parsed, err := csgt.ParseCategory(payload.Category)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
		category = parsed
	}

	job, err := h.service.Submit(c.Request.Context(), payload.Plate, category, payload.MaxRetries)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, successResponse(job))
}

func (h *Handler) getLookup(c *gin.Context) {
	job, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to load job", "err", err)
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, errorResponse("job not found"))
		return
	}
	c.JSON(http.StatusOK, successResponse(job))
}

func (h *Handler) listLookups(c *gin.Context) {
	filter := ListFilter{Limit: 50}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		switch Status(status) {
		case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
			filter.Status = Status(status)
		default:
			c.JSON(http.StatusBadRequest, errorResponse("unknown status "+strconv.Quote(status)))
			return
		}
	}
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			filter.Limit = parsed
		}
	}
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			filter.Offset = parsed
		}
	}

	jobs, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to list jobs", "err", err)
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	if jobs == nil {
		jobs = []*Job{}
	}
	c.JSON(http.StatusOK, successResponse(jobs))
}

func (h *Handler) deleteLookup(c *gin.Context) {
	deleted, err := h.service.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to delete job", "err", err)
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, errorResponse("job not found"))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) stats(c *gin.Context) {
	summary, err := h.service.Stats(c.Request.Context())
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to compute stats", "err", err)
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	c.JSON(http.StatusOK, successResponse(summary))
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func successResponse(data interface{}) gin.H {
	return gin.H{"data": data}
}

func errorResponse(message string) gin.H {
	return gin.H{"error": message}
}
