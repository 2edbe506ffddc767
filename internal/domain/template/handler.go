package template

import (
	"net/http"

	"outreach/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for template management.
type Handler struct {
	service *Service
}

// NewHandler creates a new template handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /api/v1/templates
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	t, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusCreated, t)
}

// List handles GET /api/v1/templates
func (h *Handler) List(c *gin.Context) {
	filter := ListFilter{
		Type:       c.Query("type"),
		ActiveOnly: c.DefaultQuery("active_only", "true") == "true",
	}

	templates, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, templates)
}

// Get handles GET /api/v1/templates/:name
func (h *Handler) Get(c *gin.Context) {
	t, err := h.service.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, t)
}

// Update handles PUT /api/v1/templates/:name
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	t, err := h.service.Update(c.Request.Context(), c.Param("name"), &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, t)
}

// Deactivate handles DELETE /api/v1/templates/:name (soft delete).
func (h *Handler) Deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("name")); err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"name": c.Param("name"), "is_active": false})
}

// RegisterRoutes registers template routes on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/templates", h.Create)
	rg.GET("/templates", h.List)
	rg.GET("/templates/:name", h.Get)
	rg.PUT("/templates/:name", h.Update)
	rg.DELETE("/templates/:name", h.Deactivate)
}
