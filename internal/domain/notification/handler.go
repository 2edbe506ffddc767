package notification

import (
	"net/http"
	"strconv"
	"time"

	"outreach/internal/common"

	"github.com/gin-gonic/gin"
)

// ActorContextKey is where the auth middleware stores the acting principal.
const ActorContextKey = "actor"

// ActorFromContext extracts the authenticated actor placed by the auth
// middleware. Missing attribution is tolerated — sends still go out.
func ActorFromContext(c *gin.Context) Actor {
	if v, ok := c.Get(ActorContextKey); ok {
		if actor, ok := v.(Actor); ok {
			return actor
		}
	}
	return Actor{}
}

// Handler handles HTTP requests for the notification domain.
type Handler struct {
	service *Service
}

// NewHandler creates a new notification handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// SendSMS handles POST /api/v1/notifications/sms
func (h *Handler) SendSMS(c *gin.Context) {
	var req SMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.service.SendSMS(c.Request.Context(), ActorFromContext(c), &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, sendStatusCode(result), result)
}

// SendWhatsApp handles POST /api/v1/notifications/whatsapp
func (h *Handler) SendWhatsApp(c *gin.Context) {
	var req WhatsAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.service.SendWhatsApp(c.Request.Context(), ActorFromContext(c), &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, sendStatusCode(result), result)
}

// SendEmail handles POST /api/v1/notifications/email
func (h *Handler) SendEmail(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.service.SendEmail(c.Request.Context(), ActorFromContext(c), &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, sendStatusCode(result), result)
}

// SendTemplate handles POST /api/v1/notifications/template
func (h *Handler) SendTemplate(c *gin.Context) {
	var req TemplateSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.service.SendWithTemplate(c.Request.Context(), ActorFromContext(c), &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, sendStatusCode(result), result)
}

// GetBatchLog handles GET /api/v1/notifications/logs/:batch_id
func (h *Handler) GetBatchLog(c *gin.Context) {
	log, err := h.service.GetBatch(c.Request.Context(), c.Param("batch_id"))
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, gin.H{
		"log":          log,
		"success_rate": log.SuccessRate(),
	})
}

// ListLogs handles GET /api/v1/notifications/logs
func (h *Handler) ListLogs(c *gin.Context) {
	filter := ListFilter{
		Type:    c.Query("type"),
		Channel: c.Query("channel"),
		Status:  c.Query("status"),
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	var err error
	if filter.StartDate, filter.EndDate, err = dateRange(c); err != nil {
		common.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.ListLogs(c.Request.Context(), filter)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, resp)
}

// Stats handles GET /api/v1/notifications/stats
func (h *Handler) Stats(c *gin.Context) {
	start, end, err := dateRange(c)
	if err != nil {
		common.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.service.Stats(c.Request.Context(), start, end)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, report)
}

// RegisterRoutes registers notification routes on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/notifications/sms", h.SendSMS)
	rg.POST("/notifications/whatsapp", h.SendWhatsApp)
	rg.POST("/notifications/email", h.SendEmail)
	rg.POST("/notifications/template", h.SendTemplate)
	rg.GET("/notifications/logs", h.ListLogs)
	rg.GET("/notifications/logs/:batch_id", h.GetBatchLog)
	rg.GET("/notifications/stats", h.Stats)
}

// sendStatusCode maps a batch result to its HTTP status: 202 for queued
// batches, 200 otherwise (failed batches are still structured results, not
// HTTP errors).
func sendStatusCode(result *BatchResult) int {
	if result.Status == StatusPending {
		return http.StatusAccepted
	}
	return http.StatusOK
}

// dateRange parses optional start_date/end_date query params (YYYY-MM-DD).
// The end date is inclusive of its whole day.
func dateRange(c *gin.Context) (*time.Time, *time.Time, error) {
	var start, end *time.Time
	if v := c.Query("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, nil, common.NewValidationError("invalid start_date, expected YYYY-MM-DD")
		}
		start = &t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, nil, common.NewValidationError("invalid end_date, expected YYYY-MM-DD")
		}
		eod := t.Add(24*time.Hour - time.Nanosecond)
		end = &eod
	}
	return start, end, nil
}
