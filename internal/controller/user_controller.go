package controller

import (
	"path/filepath"
	"strings"
	"time"

	"eduoj/internal/actionlog"
	"eduoj/internal/archive"
	"eduoj/internal/common/cache"
	"eduoj/internal/common/db"
	"eduoj/internal/problems"
	"eduoj/internal/realtime"
	"eduoj/internal/settings"
	appErr "eduoj/pkg/errors"
	"eduoj/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// maxUploadSize caps uploaded submission archives at 10 MiB.
const maxUploadSize = 10 << 20

const uploadFileField = "file"

// UserController handles the student-facing endpoints.
type UserController struct {
	store      *archive.Store
	settings   *settings.Service
	actions    actionlog.Repository
	hub        *realtime.Hub
	dbProvider db.Provider
	cache      cache.Cache
}

// NewUserController creates the student-facing controller.
func NewUserController(
	store *archive.Store,
	settingsService *settings.Service,
	actions actionlog.Repository,
	hub *realtime.Hub,
	dbProvider db.Provider,
	cacheClient cache.Cache,
) *UserController {
	return &UserController{
		store:      store,
		settings:   settingsService,
		actions:    actions,
		hub:        hub,
		dbProvider: dbProvider,
		cache:      cacheClient,
	}
}

// UploadProgram stores a student's submission archive as {studentID}.zip
// under the upload root, replacing any previous submission.
func (h *UserController) UploadProgram(c *gin.Context) {
	studentID := strings.TrimSpace(c.PostForm("studentId"))
	if studentID == "" {
		response.BadRequest(c, "studentId is required")
		return
	}
	if _, err := h.settings.ValidateStudent(studentID); err != nil {
		response.Error(c, err)
		return
	}

	file, err := c.FormFile(uploadFileField)
	if err != nil {
		response.BadRequest(c, "uploaded file is required")
		return
	}
	if file.Size > maxUploadSize {
		response.Error(c, appErr.Newf(appErr.UploadTooLarge, "archive is %d bytes, limit is %d", file.Size, maxUploadSize))
		return
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), archive.ArchiveExt) {
		response.BadRequest(c, "only zip archives are accepted")
		return
	}

	dest := h.store.ArchivePath(studentID)
	if err := c.SaveUploadedFile(file, dest); err != nil {
		response.Error(c, appErr.Wrapf(err, appErr.UploadStoreFailed, "store archive for %s failed", studentID))
		return
	}

	h.logAction(c, studentID, "upload", file.Filename)
	response.SuccessWithMessage(c, "Submission stored", gin.H{"studentId": studentID})
}

// GetConfig returns the configuration document with hidden test cases
// stripped, since this endpoint is reachable by students.
func (h *UserController) GetConfig(c *gin.Context) {
	cfg, err := h.settings.CurrentConfig()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, sanitizeConfig(cfg))
}

type studentRequest struct {
	StudentID string `json:"studentId" binding:"required"`
}

// IsStudentValid reports whether a student id is on the roster.
func (h *UserController) IsStudentValid(c *gin.Context) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	student, err := h.settings.ValidateStudent(strings.TrimSpace(req.StudentID))
	if err != nil {
		if appErr.Is(err, appErr.StudentNotRegistered) {
			response.Success(c, gin.H{"valid": false})
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"valid": true, "name": student.Name})
}

type actionLogRequest struct {
	StudentID  string `json:"studentId" binding:"required"`
	ActionType string `json:"actionType" binding:"required"`
	Details    string `json:"details"`
}

// LogUserAction records a frontend-reported user action together with the
// caller's address.
func (h *UserController) LogUserAction(c *gin.Context) {
	var req actionLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	record := &actionlog.Record{
		StudentID:  strings.TrimSpace(req.StudentID),
		IPAddress:  c.ClientIP(),
		ActionType: req.ActionType,
		Details:    req.Details,
		OccurredAt: time.Now(),
	}
	if err := h.actions.Create(c.Request.Context(), nil, record); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Status reports component health: database, cache and whether a
// configuration document is loaded.
func (h *UserController) Status(c *gin.Context) {
	ctx := c.Request.Context()

	dbOK := false
	if database, err := db.CurrentDatabase(h.dbProvider); err == nil {
		dbOK = database.Ping(ctx) == nil
	}
	cacheOK := h.cache != nil && h.cache.Ping(ctx) == nil
	_, cfgErr := h.settings.CurrentConfig()

	response.Success(c, gin.H{
		"database":     dbOK,
		"cache":        cacheOK,
		"configLoaded": cfgErr == nil,
	})
}

// Heartbeat is a plain liveness endpoint.
func (h *UserController) Heartbeat(c *gin.Context) {
	response.Success(c, gin.H{"alive": true, "time": time.Now().Format(time.RFC3339)})
}

// ServeWS upgrades the connection and hands it to the push hub.
func (h *UserController) ServeWS(c *gin.Context) {
	if err := h.hub.ServeWS(c.Writer, c.Request); err != nil {
		// The upgrader has already written its own error response.
		c.Abort()
	}
}

func (h *UserController) logAction(c *gin.Context, studentID, actionType, details string) {
	record := &actionlog.Record{
		StudentID:  studentID,
		IPAddress:  c.ClientIP(),
		ActionType: actionType,
		Details:    details,
		OccurredAt: time.Now(),
	}
	// Action logging never fails the main operation.
	_ = h.actions.Create(c.Request.Context(), nil, record)
}

// sanitizeConfig strips hidden test cases from the document before it leaves
// the admin boundary.
func sanitizeConfig(cfg *problems.Config) *problems.Config {
	out := &problems.Config{
		Puzzles:  make([]problems.Problem, len(cfg.Puzzles)),
		Students: cfg.Students,
	}
	for i, p := range cfg.Puzzles {
		sanitized := p
		sanitized.TestCases = make([]problems.TestCaseGroup, len(p.TestCases))
		for j, group := range p.TestCases {
			sanitized.TestCases[j] = problems.TestCaseGroup{Open: group.Open}
		}
		out.Puzzles[i] = sanitized
	}
	return out
}
