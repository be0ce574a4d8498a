package management

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"okapi/internal/constants"
	"okapi/internal/logger"
	"okapi/internal/rule"
	"okapi/pkg/errors"
)

type BaseHandler struct {
	Service Service
	Logger  logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

type Handler struct {
	BaseHandler
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{
			Service: service,
			Logger:  log,
		},
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		rules := v1.Group("/rules/trigger")
		{
			rules.GET("", h.ListRules)
			rules.POST("", h.CreateRule)
			rules.POST("/preview", h.PreviewDefinition)
			rules.GET("/templates", h.ListTemplates)
			rules.GET("/:id", h.GetRule)
			rules.PUT("/:id", h.UpdateRule)
			rules.DELETE("/:id", h.DeleteRule)
			rules.POST("/:id/enable", h.EnableRule)
			rules.POST("/:id/disable", h.DisableRule)
			rules.GET("/:id/preview", h.PreviewRule)
			rules.GET("/:id/executions", h.ListRuleExecutions)
			rules.GET("/:id/versions", h.GetRuleVersions)
			rules.GET("/:id/audit", h.GetRuleAuditLogs)
		}

		audit := v1.Group("/audit")
		{
			audit.GET("/logs", h.GetAuditLogs)
		}
	}
}

func (h *Handler) ListRules(c *gin.Context) {
	rules, err := h.Service.ListTriggerRules(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (h *Handler) CreateRule(c *gin.Context) {
	var req CreateTriggerRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	tr, err := h.Service.CreateTriggerRule(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tr)
}

func (h *Handler) GetRule(c *gin.Context) {
	id := c.Param("id")
	tr, err := h.Service.GetTriggerRule(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, tr)
}

func (h *Handler) UpdateRule(c *gin.Context) {
	id := c.Param("id")
	var req UpdateTriggerRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	tr, err := h.Service.UpdateTriggerRule(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, tr)
}

func (h *Handler) DeleteRule(c *gin.Context) {
	id := c.Param("id")
	resp, err := h.Service.DeleteTriggerRule(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) EnableRule(c *gin.Context) {
	h.setEnabled(c, true)
}

func (h *Handler) DisableRule(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *Handler) setEnabled(c *gin.Context, enabled bool) {
	id := c.Param("id")
	tr, err := h.Service.SetTriggerRuleEnabled(c.Request.Context(), id, enabled)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, tr)
}

func (h *Handler) PreviewRule(c *gin.Context) {
	id := c.Param("id")
	resp, err := h.Service.PreviewTriggerRule(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) PreviewDefinition(c *gin.Context) {
	var req CreateTriggerRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	resp, err := h.Service.PreviewDefinition(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListTemplates(c *gin.Context) {
	templates := make(map[string][]rule.FieldTemplate, len(rule.Categories))
	for _, category := range rule.Categories {
		templates[string(category)] = rule.TemplatesFor(category)
	}
	c.JSON(http.StatusOK, templates)
}

func (h *Handler) ListRuleExecutions(c *gin.Context) {
	id := c.Param("id")
	limit := parseLimit(c.Query("limit"))

	records, err := h.Service.ListExecutions(c.Request.Context(), id, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, records)
}

func (h *Handler) GetRuleVersions(c *gin.Context) {
	id := c.Param("id")
	versions, err := h.Service.GetRuleVersions(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

func (h *Handler) GetRuleAuditLogs(c *gin.Context) {
	id := c.Param("id")
	limit := parseLimit(c.Query("limit"))

	logs, err := h.Service.GetAuditLogs(c.Request.Context(), &id, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h *Handler) GetAuditLogs(c *gin.Context) {
	ruleID := c.Query("rule_id")
	limit := parseLimit(c.Query("limit"))

	var ruleIDPtr *string
	if ruleID != "" {
		ruleIDPtr = &ruleID
	}

	logs, err := h.Service.GetAuditLogs(c.Request.Context(), ruleIDPtr, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func parseLimit(limitStr string) int {
	if limitStr == "" {
		return constants.DefaultLimit
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 || parsed > constants.MaxLimit {
		return constants.DefaultLimit
	}
	return parsed
}
