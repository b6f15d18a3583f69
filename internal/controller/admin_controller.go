package controller

import (
	"strconv"
	"strings"

	"eduoj/internal/actionlog"
	"eduoj/internal/admin"
	"eduoj/internal/alertlog"
	"eduoj/internal/archive"
	judgesvc "eduoj/internal/judge/service"
	"eduoj/internal/scoreboard"
	"eduoj/internal/settings"
	appErr "eduoj/pkg/errors"
	"eduoj/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminController handles the token-guarded grading and moderation
// endpoints.
type AdminController struct {
	auth     *admin.AuthService
	judge    *judgesvc.Service
	store    *archive.Store
	scores   scoreboard.Repository
	actions  actionlog.Repository
	alerts   alertlog.Repository
	checker  *alertlog.Service
	restore  *admin.RestoreService
	settings *settings.Service
}

// NewAdminController creates the admin controller.
func NewAdminController(
	auth *admin.AuthService,
	judgeService *judgesvc.Service,
	store *archive.Store,
	scores scoreboard.Repository,
	actions actionlog.Repository,
	alerts alertlog.Repository,
	checker *alertlog.Service,
	restore *admin.RestoreService,
	settingsService *settings.Service,
) *AdminController {
	return &AdminController{
		auth:     auth,
		judge:    judgeService,
		store:    store,
		scores:   scores,
		actions:  actions,
		alerts:   alerts,
		checker:  checker,
		restore:  restore,
		settings: settingsService,
	}
}

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

// Login checks the admin password and issues a token.
func (h *AdminController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	token, err := h.auth.Login(req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"token": token})
}

type judgeCodeRequest struct {
	StudentID string `json:"studentId" binding:"required"`
	ProblemID string `json:"problemId" binding:"required"`
}

// JudgeCode judges one student's submission against one problem and records
// the outcome.
func (h *AdminController) JudgeCode(c *gin.Context) {
	var req judgeCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	verdicts, err := h.judge.JudgeAndRecord(c.Request.Context(), strings.TrimSpace(req.StudentID), strings.TrimSpace(req.ProblemID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, verdicts)
}

// JudgeAll grades every uploaded submission against every configured
// problem.
func (h *AdminController) JudgeAll(c *gin.Context) {
	summary, err := h.judge.JudgeAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, summary)
}

// GetSubmissions lists the student ids that have uploaded an archive.
func (h *AdminController) GetSubmissions(c *gin.Context) {
	ids, err := h.store.ListSubmissions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	response.Success(c, ids)
}

// Scoreboard returns every scoreboard row in rank order.
func (h *AdminController) Scoreboard(c *gin.Context) {
	entries, err := h.scores.List(c.Request.Context(), nil)
	if err != nil {
		response.Error(c, err)
		return
	}
	if entries == nil {
		entries = []scoreboard.Entry{}
	}
	response.Success(c, entries)
}

// Alerts lists stored alerts; ?open=true restricts to unacknowledged ones.
func (h *AdminController) Alerts(c *gin.Context) {
	onlyOpen := c.Query("open") == "true"
	alerts, err := h.alerts.List(c.Request.Context(), nil, onlyOpen)
	if err != nil {
		response.Error(c, err)
		return
	}
	if alerts == nil {
		alerts = []alertlog.Alert{}
	}
	response.Success(c, alerts)
}

// AcknowledgeAlert marks one alert as handled.
func (h *AdminController) AcknowledgeAlert(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid alert id")
		return
	}
	if err := h.alerts.SetAcknowledged(c.Request.Context(), nil, id, true); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// CheckAlerts runs the anomaly check now and returns the newly raised
// alerts.
func (h *AdminController) CheckAlerts(c *gin.Context) {
	raised, err := h.checker.RunCheck(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if raised == nil {
		raised = []alertlog.Alert{}
	}
	response.Success(c, raised)
}

// Logs lists user action logs, optionally filtered by student or address.
func (h *AdminController) Logs(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		records []actionlog.Record
		err     error
	)
	switch {
	case c.Query("studentId") != "":
		records, err = h.actions.ListByStudent(ctx, nil, c.Query("studentId"))
	case c.Query("ip") != "":
		records, err = h.actions.ListByIP(ctx, nil, c.Query("ip"))
	default:
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit < 0 {
				response.BadRequest(c, "Invalid limit")
				return
			}
		}
		records, err = h.actions.List(ctx, nil, limit)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	if records == nil {
		records = []actionlog.Record{}
	}
	response.Success(c, records)
}

// Restore wipes grading state and reloads the configuration document.
func (h *AdminController) Restore(c *gin.Context) {
	if err := h.restore.Restore(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "State restored", nil)
}

type setConfigRequest struct {
	Config string `json:"config" binding:"required"`
}

// SetConfig validates and installs a new configuration document.
func (h *AdminController) SetConfig(c *gin.Context) {
	var req setConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	cfg, err := h.settings.SaveConfig(c.Request.Context(), req.Config)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"problems": len(cfg.Puzzles),
		"students": len(cfg.Students),
	})
}

// AdminAuthMiddleware rejects requests without a valid admin bearer token.
func AdminAuthMiddleware(auth *admin.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		const prefix = "Bearer "
		if !strings.HasPrefix(raw, prefix) {
			response.AbortWithErrorCode(c, appErr.TokenInvalid, "")
			return
		}
		if err := auth.Verify(strings.TrimSpace(raw[len(prefix):])); err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
