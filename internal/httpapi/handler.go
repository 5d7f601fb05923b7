// Package httpapi is the gin delivery layer. Handlers validate input,
// translate sentinel errors onto status codes, and delegate everything
// else to the services.
package httpapi

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"bridgesheet/internal/auth"
	"bridgesheet/internal/cloudinary"
	"bridgesheet/internal/config"
	"bridgesheet/internal/event"
	"bridgesheet/internal/model"
	"bridgesheet/internal/ocr"
	"bridgesheet/internal/roster"
)

// Handler wires the services behind the HTTP routes.
type Handler struct {
	cfg    config.App
	events *event.Service
	roster *roster.Service
	jobs   *ocr.Service
	cloud  *cloudinary.Client // nil when Cloudinary is not configured
}

// New creates a handler.
func New(cfg config.App, events *event.Service, rosterSvc *roster.Service, jobs *ocr.Service, cloud *cloudinary.Client) *Handler {
	return &Handler{cfg: cfg, events: events, roster: rosterSvc, jobs: jobs, cloud: cloud}
}

// Register mounts all routes on the engine. The session route is public;
// everything else sits behind bearer auth.
func (h *Handler) Register(r *gin.Engine) {
	r.POST("/v1/session", h.CreateSession)

	api := r.Group("/v1", auth.SessionAuth(h.cfg.JWTSigningKey, h.cfg.JWTIssuer))
	api.POST("/events", h.CreateEvent)
	api.GET("/events", h.ListEvents)
	api.GET("/events/:id", h.GetEvent)
	api.POST("/events/:id/photos", h.UploadPhoto)
	api.GET("/events/:id/jobs", h.ListEventJobs)
	api.GET("/jobs/:id", h.GetJob)
	api.POST("/events/:id/confirm", h.Confirm)
	api.POST("/events/:id/attendance", h.RecordAttendance)
	api.GET("/events/:id/attendance", h.ListAttendance)
	api.GET("/events/:id/roster", h.Roster)
	api.POST("/members/import", h.ImportMembers)
}

// ---------- Session ----------

// CreateSession exchanges the shared setup secret for a bearer token.
func (h *Handler) CreateSession(c *gin.Context) {
	var req struct {
		Secret string `json:"secret" binding:"required"`
		Name   string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Secret != h.cfg.SetupSecret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "bad secret"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "teacher"
	}

	sess, err := auth.Issue(name, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.SessionTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt.Unix(),
	})
}

// ---------- Events ----------

// CreateEvent records a class occurrence. The id may come from a sheet
// generated offline; otherwise one is generated here.
func (h *Handler) CreateEvent(c *gin.Context) {
	var req struct {
		ID       string `json:"id"`
		Name     string `json:"name" binding:"required"`
		Date     string `json:"date"`
		Teacher  string `json:"teacher" binding:"required"`
		Location string `json:"location"`
		Type     string `json:"type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	evt, err := h.events.Create(c.Request.Context(), model.Event{
		ID:       req.ID,
		Name:     req.Name,
		Date:     req.Date,
		Teacher:  req.Teacher,
		Location: req.Location,
		Type:     req.Type,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, evt)
}

// GetEvent returns one event.
func (h *Handler) GetEvent(c *gin.Context) {
	evt, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, evt)
}

// ListEvents returns events with basic pagination.
func (h *Handler) ListEvents(c *gin.Context) {
	limit, offset := 50, 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	events, err := h.events.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// ---------- Photos & jobs ----------

// UploadPhoto accepts a sheet photo, stores it, and runs extraction
// synchronously. The response is 202 even when extraction failed: the
// photo is kept either way and the job carries the error.
func (h *Handler) UploadPhoto(c *gin.Context) {
	ctx := c.Request.Context()
	evt, err := h.events.Get(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	imageURL, ok := h.resolvePhotoURL(c)
	if !ok {
		return
	}

	job, err := h.jobs.Run(ctx, evt.ID, imageURL)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// resolvePhotoURL gets a durable photo URL out of the request: a multipart
// file or base64 body uploaded to Cloudinary, or an already-stored URL
// passed through.
func (h *Handler) resolvePhotoURL(c *gin.Context) (string, bool) {
	contentType := c.ContentType()

	if strings.Contains(contentType, "multipart/form-data") {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
			return "", false
		}
		defer file.Close()

		if h.cloud == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "photo storage not configured"})
			return "", false
		}
		result, err := h.cloud.Upload(file, header.Filename)
		if err != nil {
			log.Printf("cloudinary upload failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "photo upload failed"})
			return "", false
		}
		return result.SecureURL, true
	}

	var body struct {
		Data     string `json:"data"`
		ImageURL string `json:"image_url"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || (body.Data == "" && body.ImageURL == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide a multipart file, {\"data\": \"<base64 data URL>\"}, or {\"image_url\": ...}"})
		return "", false
	}
	if body.ImageURL != "" {
		return body.ImageURL, true
	}

	if h.cloud == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "photo storage not configured"})
		return "", false
	}
	result, err := h.cloud.UploadBase64(body.Data)
	if err != nil {
		log.Printf("cloudinary upload failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "photo upload failed"})
		return "", false
	}
	return result.SecureURL, true
}

// GetJob returns one extraction attempt.
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListEventJobs returns all extraction attempts for an event.
func (h *Handler) ListEventJobs(c *gin.Context) {
	jobs, err := h.jobs.ListByEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// ---------- Confirm & attendance ----------

// Confirm commits a human-reviewed extraction. Safe to repeat: entries
// already on record come back as skipped.
func (h *Handler) Confirm(c *gin.Context) {
	ctx := c.Request.Context()
	evt, err := h.events.Get(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	var req struct {
		Attendance  []roster.AttendanceInput `json:"attendance"`
		MailingList []roster.MailingInput    `json:"mailing_list"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.roster.Confirm(ctx, evt.ID, req.Attendance, req.MailingList)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// RecordAttendance is the direct single-record endpoint. A duplicate pair
// is a 409 here, unlike confirm where it degrades to skipped.
func (h *Handler) RecordAttendance(c *gin.Context) {
	ctx := c.Request.Context()
	evt, err := h.events.Get(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	var req struct {
		StudentName string  `json:"student_name" binding:"required"`
		TableNumber *int    `json:"table_number"`
		Seat        *string `json:"seat"`
		Source      string  `json:"source"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	att, err := h.roster.RecordAttendance(ctx, evt.ID, req.StudentName, req.TableNumber, req.Seat, req.Source)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, att)
}

// ListAttendance returns recorded attendance for an event.
func (h *Handler) ListAttendance(c *gin.Context) {
	ctx := c.Request.Context()
	evt, err := h.events.Get(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	attendance, err := h.roster.ListAttendance(ctx, evt.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": attendance})
}

// ---------- Members & roster ----------

// ImportMembers bulk-upserts the canonical mailing-list roster.
func (h *Handler) ImportMembers(c *gin.Context) {
	var req struct {
		Members []roster.MemberInput `json:"members" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	imported, err := h.roster.ImportMembers(c.Request.Context(), req.Members)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": imported})
}

// Roster returns the cross-referenced attendee roster for an event's class.
func (h *Handler) Roster(c *gin.Context) {
	ctx := c.Request.Context()
	evt, err := h.events.Get(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	rows, err := h.roster.RosterFor(ctx, evt)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": evt, "roster": rows})
}

// ---------- Errors ----------

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, model.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "already recorded"})
	case errors.Is(err, io.EOF):
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty body"})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
