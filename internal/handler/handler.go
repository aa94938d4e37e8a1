// Package handler exposes the service over HTTP.
package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ashutoshvm-off/library-attendance/internal/attendance"
	"github.com/ashutoshvm-off/library-attendance/internal/auth"
	"github.com/ashutoshvm-off/library-attendance/internal/config"
	"github.com/ashutoshvm-off/library-attendance/internal/remote"
	"github.com/ashutoshvm-off/library-attendance/internal/roster"
	"github.com/ashutoshvm-off/library-attendance/internal/staff"
	"github.com/ashutoshvm-off/library-attendance/internal/syncer"
)

// Handler carries the wired services for the HTTP routes.
type Handler struct {
	cfg    config.App
	att    *attendance.Service
	roster *roster.Service
	staff  *staff.Service
	sync   *syncer.Service
	remote remote.Store
}

// New builds a handler over the composed services.
func New(cfg config.App, att *attendance.Service, ros *roster.Service, stf *staff.Service, sync *syncer.Service, rs remote.Store) *Handler {
	return &Handler{cfg: cfg, att: att, roster: ros, staff: stf, sync: sync, remote: rs}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	remoteOK := h.remote.Ping(c.Request.Context()) == nil
	st := h.sync.Status()
	mode := "ok"
	if !remoteOK {
		// Local-only mode is degraded, not down: scans keep working.
		mode = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  mode,
		"remote":  remoteOK,
		"pending": st.Pending,
	})
}

// ---------- Auth ----------

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	acct, sess, err := h.staff.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	tokens, err := auth.Issue(acct.Username, acct.Role, sess.ID, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
		"staff":         acct,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	claims := auth.FromContext(c)
	if err := h.staff.Logout(c.Request.Context(), claims.SessionID); err != nil {
		// The session document may predate a restart; logout still clears
		// the local login state.
		c.JSON(http.StatusOK, gin.H{"status": "logged out", "session": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// Session returns the persisted login session, letting a reloaded client
// restore its state without a fresh login.
func (h *Handler) Session(c *gin.Context) {
	sess, ok := h.staff.CurrentSession()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

// ---------- Scanning ----------

type scanRequest struct {
	SubjectID string `json:"subject_id" binding:"required"`
}

func (h *Handler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.att.Scan(c.Request.Context(), req.SubjectID)
	if err != nil {
		if errors.Is(err, attendance.ErrEmptySubject) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ---------- Records ----------

func (h *Handler) ListRecords(c *gin.Context) {
	records, err := h.att.List(c.Request.Context(), c.Query("date"), c.Query("subject_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *Handler) ExportRecords(c *gin.Context) {
	records, err := h.att.List(c.Request.Context(), c.Query("date"), c.Query("subject_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	name := "attendance"
	if d := c.Query("date"); d != "" {
		name += "-" + d
	}
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".csv"))
	if err := h.att.ExportCSV(c.Writer, records); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// ---------- Roster ----------

type rosterRequest struct {
	SubjectID string `json:"subject_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

func (h *Handler) CreateRoster(c *gin.Context) {
	var req rosterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := h.roster.Create(c.Request.Context(), roster.Entry{
		SubjectID: req.SubjectID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		if errors.Is(err, roster.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *Handler) ListRoster(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"roster": h.roster.List(c.Request.Context())})
}

type rosterUpdateRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (h *Handler) UpdateRoster(c *gin.Context) {
	var req rosterUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := h.roster.Update(c.Request.Context(), c.Param("id"), roster.Entry{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		if errors.Is(err, roster.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) DeleteRoster(c *gin.Context) {
	if err := h.roster.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ---------- Sync ----------

func (h *Handler) SyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.sync.Status())
}

// SyncFlush forces a connectivity probe and a drain attempt, then reports
// the resulting status.
func (h *Handler) SyncFlush(c *gin.Context) {
	ctx := c.Request.Context()
	if h.sync.Probe(ctx) {
		h.sync.SyncNow(ctx)
	}
	st := h.sync.Status()
	code := http.StatusOK
	if !st.Online {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, st)
}

// Routes mounts every endpoint on the router.
func (h *Handler) Routes(r *gin.Engine) {
	r.GET("/healthz", h.Healthz)
	r.POST("/v1/login", h.Login)

	v1 := r.Group("/v1", auth.StaffAuth(h.cfg.JWTSigningKey, h.cfg.JWTIssuer))
	v1.POST("/logout", h.Logout)
	v1.GET("/session", h.Session)
	v1.POST("/scan", h.Scan)
	v1.GET("/records", h.ListRecords)
	v1.GET("/records/export", h.ExportRecords)
	v1.POST("/roster", h.CreateRoster)
	v1.GET("/roster", h.ListRoster)
	v1.PUT("/roster/:id", h.UpdateRoster)
	v1.DELETE("/roster/:id", h.DeleteRoster)
	v1.GET("/sync/status", h.SyncStatus)
	v1.POST("/sync/flush", h.SyncFlush)
}
