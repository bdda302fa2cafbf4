// Package api serves the command surface over HTTP.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/metrics"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/service"
)

type Handler struct {
	svc *service.Service
	log *logrus.Entry
}

// NewRouter wires every route. metricsPath "" disables /metrics.
func NewRouter(svc *service.Service, m *metrics.Metrics, metricsPath string, log *logrus.Entry) *gin.Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	h := &Handler{svc: svc, log: log}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))
	r.GET("/healthz", h.health)
	if metricsPath != "" && m != nil {
		r.GET(metricsPath, gin.WrapH(m.Handler()))
	}

	api := r.Group("/api")
	api.GET("/countries", h.listCountries)
	api.GET("/countries/:id", h.getCountry)
	api.PUT("/countries/active", h.setActive)
	api.GET("/events", h.events)
	api.DELETE("/events", h.resetEvents)
	api.GET("/search", h.search)
	api.POST("/cycles", h.triggerCycle)
	api.POST("/cycles/cancel", h.cancelCycle)
	api.GET("/cycles/last", h.lastCycle)
	api.GET("/stats", h.stats)
	return r
}

func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("http request")
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, service.ErrUnknownCountry) {
		status = http.StatusNotFound
	} else {
		h.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) listCountries(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"countries": h.svc.ListCountries()})
}

func (h *Handler) getCountry(c *gin.Context) {
	p, err := h.svc.GetCountry(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type setActiveRequest struct {
	Country string `json:"country" binding:"required"`
}

func (h *Handler) setActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"country\": \"<id>\"}"})
		return
	}
	p, err := h.svc.SetActiveCountry(req.Country)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": p.ID})
}

type eventsQuery struct {
	Country string `form:"country"`
	Search  string `form:"search"`
	Q       string `form:"q"`
	Source  string `form:"source"`
	Page    int    `form:"page" binding:"omitempty,min=1"`
	Limit   int    `form:"limit" binding:"omitempty,min=1"`
}

func (h *Handler) events(c *gin.Context) {
	var q eventsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page and limit must be positive integers"})
		return
	}
	h.findEvents(c, q)
}

func (h *Handler) search(c *gin.Context) {
	var q eventsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page and limit must be positive integers"})
		return
	}
	if q.Q == "" && q.Search == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	h.findEvents(c, q)
}

func (h *Handler) findEvents(c *gin.Context, q eventsQuery) {
	page, err := h.svc.FindEvents(c.Request.Context(), service.EventQuery{
		Country: q.Country,
		Search:  firstNonEmpty(q.Search, q.Q),
		Source:  q.Source,
		Page:    q.Page,
		Limit:   q.Limit,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"country": page.Country,
		"count":   len(page.Events),
		"total":   page.Total,
		"page":    page.Page,
		"limit":   page.Limit,
		"events":  page.Events,
	})
}

type resetQuery struct {
	Country string `form:"country"`
	All     bool   `form:"all"`
}

// resetEvents deletes the stored events of one country, or of every country
// with all=true.
func (h *Handler) resetEvents(c *gin.Context) {
	var q resetQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "all must be a boolean"})
		return
	}
	if q.All {
		ids, err := h.svc.ResetAllEvents(c.Request.Context())
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reset": ids})
		return
	}
	id, err := h.svc.ResetEvents(c.Request.Context(), q.Country)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": []string{id}})
}

func (h *Handler) cancelCycle(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cancelled": h.svc.CancelCycle()})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (h *Handler) triggerCycle(c *gin.Context) {
	queued := h.svc.TriggerCycleNow()
	c.JSON(http.StatusAccepted, gin.H{"queued": queued})
}

func (h *Handler) lastCycle(c *gin.Context) {
	rep, ok := h.svc.LastReport()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cycle has finished yet"})
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handler) stats(c *gin.Context) {
	st, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
