package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dwasnwk/oktyv/component"
	"github.com/dwasnwk/oktyv/engine"
	apperrors "github.com/dwasnwk/oktyv/errors"
	"github.com/dwasnwk/oktyv/tool"
	"github.com/dwasnwk/oktyv/validation"
	"github.com/dwasnwk/oktyv/version"
)

// Handler wires the execution engine and tool registry to HTTP routes.
type Handler struct {
	orchestrator *engine.Orchestrator
	tools        *tool.Registry
	components   *component.Registry
}

// NewHandler creates a Handler over the given orchestrator, tool registry,
// and component registry.
func NewHandler(orch *engine.Orchestrator, tools *tool.Registry, components *component.Registry) *Handler {
	return &Handler{orchestrator: orch, tools: tools, components: components}
}

// RegisterRoutes mounts the API on the Gin engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/version", h.Version)

	v1 := r.Group("/v1")
	v1.POST("/executions", h.Execute)
	v1.GET("/tools", h.Tools)
}

// Version reports the build's version information.
func (h *Handler) Version(c *gin.Context) {
	RespondOK(c, version.Get())
}

// Execute runs a batch of tasks and returns the execution report. Graph and
// request errors map to 400; the report itself carries per-task failures, so
// a completed execution is always a 200 regardless of task outcomes.
func (h *Handler) Execute(c *gin.Context) {
	var req engine.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, apperrors.InvalidInput("request body", err.Error()))
		return
	}
	if err := validation.Validate(&req); err != nil {
		RespondWithError(c, err)
		return
	}

	report, err := h.orchestrator.Execute(c.Request.Context(), req)
	if err != nil {
		if appErr := engine.AsAppError(err); appErr != nil {
			RespondWithError(c, appErr)
			return
		}
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// toolInfo describes one registered tool.
type toolInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// Tools lists registered tools and their availability.
func (h *Handler) Tools(c *gin.Context) {
	names := h.tools.List()
	infos := make([]toolInfo, 0, len(names))
	for _, name := range names {
		t, ok := h.tools.Get(name)
		if !ok {
			continue
		}
		infos = append(infos, toolInfo{
			Name:      name,
			Available: t.IsAvailable(c.Request.Context()),
		})
	}
	RespondOK(c, infos)
}

// healthResponse aggregates component health.
type healthResponse struct {
	Status     component.HealthStatus `json:"status"`
	Components []component.Health     `json:"components"`
}

// Health reports aggregate component health. Any unhealthy component turns
// the overall status unhealthy with a 503.
func (h *Handler) Health(c *gin.Context) {
	checks := h.components.HealthAll(c.Request.Context())

	status := component.StatusHealthy
	for _, check := range checks {
		if check.Status != component.StatusHealthy {
			status = component.StatusUnhealthy
			break
		}
	}

	code := http.StatusOK
	if status != component.StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, healthResponse{Status: status, Components: checks})
}
