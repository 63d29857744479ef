package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"multirag/internal/app"
	"multirag/internal/transport/http/response"
)

type AdminHandler struct {
	statsService  *app.StatsService
	taskService   *app.TaskService
	backupService *app.BackupService
}

type RestoreBackupRequest struct {
	Key string `json:"key" binding:"required"`
}

func NewAdminHandler(
	statsService *app.StatsService,
	taskService *app.TaskService,
	backupService *app.BackupService,
) *AdminHandler {
	return &AdminHandler{
		statsService:  statsService,
		taskService:   taskService,
		backupService: backupService,
	}
}

func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.statsService.Collect()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "collect stats failed")
		return
	}
	response.OK(c, stats)
}

// CleanupTasks removes terminal tasks older than the given number of days
// (default 7).
func (h *AdminHandler) CleanupTasks(c *gin.Context) {
	days := 7
	if s := c.Query("days"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 1 {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	deleted, err := h.taskService.CleanupOld(time.Duration(days) * 24 * time.Hour)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "cleanup tasks failed")
		return
	}
	response.OK(c, gin.H{"deleted": deleted})
}

func (h *AdminHandler) CreateBackup(c *gin.Context) {
	info, err := h.backupService.Create(c.Request.Context())
	if err != nil {
		if errors.Is(err, app.ErrBackupNotConfigured) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		} else {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create backup failed")
		}
		return
	}
	response.OK(c, info)
}

func (h *AdminHandler) ListBackups(c *gin.Context) {
	backups, err := h.backupService.List(c.Request.Context())
	if err != nil {
		if errors.Is(err, app.ErrBackupNotConfigured) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		} else {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list backups failed")
		}
		return
	}
	response.OK(c, gin.H{"backups": backups})
}

func (h *AdminHandler) RestoreBackup(c *gin.Context) {
	var req RestoreBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	if err := h.backupService.Restore(c.Request.Context(), req.Key); err != nil {
		switch {
		case errors.Is(err, app.ErrBackupNotConfigured), errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "restore backup failed")
		}
		return
	}
	response.OK(c, gin.H{"restored_from": req.Key})
}
