package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"artledger/internal/attendance"
	"artledger/internal/auth"
	"artledger/internal/config"
	"artledger/internal/fees"
	"artledger/internal/metrics"
	"artledger/internal/notify"
	"artledger/internal/queue"
	"artledger/internal/roster"
)

// Handler serves the admin ledger API.
type Handler struct {
	cfg        config.App
	tokens     *auth.Signer
	roster     *roster.Collection
	attendance *attendance.Ledger
	fees       *fees.Ledger
	notify     *notify.Log
	queue      queue.Queue
}

// New wires a handler over the ledgers.
func New(cfg config.App, r *roster.Collection, a *attendance.Ledger, f *fees.Ledger, n *notify.Log, q queue.Queue) *Handler {
	return &Handler{
		cfg:        cfg,
		tokens:     auth.NewSigner(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL),
		roster:     r,
		attendance: a,
		fees:       f,
		notify:     n,
		queue:      q,
	}
}

// Register mounts the API routes. Auth endpoints stay outside the
// admin-guarded group.
func (h *Handler) Register(r *gin.Engine) {
	r.POST("/v1/auth/token", h.IssueToken)
	r.POST("/v1/auth/refresh", h.RefreshToken)

	admin := r.Group("/v1", auth.AdminAuth(h.tokens))
	admin.GET("/students", h.ListStudents)
	admin.GET("/enrollments", h.ListEnrollments)

	admin.GET("/attendance/history", h.AttendanceHistory)
	admin.GET("/attendance/days/:date", h.GetAttendance)
	admin.PUT("/attendance/days/:date", h.SaveAttendance)
	admin.GET("/attendance/days/:date/export", h.ExportAttendance)

	admin.GET("/fees", h.ListFees)
	admin.POST("/fees/:studentId/payments", h.RecordPayment)

	admin.GET("/notifications", h.ListNotifications)
	admin.GET("/notifications/recipients", h.PreviewRecipients)
	admin.POST("/notifications", h.SendNotification)
	admin.DELETE("/notifications/:id", h.DeleteNotification)
}

// ---------- Auth ----------

// IssueToken exchanges the shared admin key for a JWT pair.
func (h *Handler) IssueToken(c *gin.Context) {
	var req struct {
		AdminKey string `json:"admin_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.AdminKey != h.cfg.AdminAPIKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin key"})
		return
	}
	tokens, err := h.tokens.IssuePair("admin")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

// RefreshToken trades a valid refresh token for a new pair.
func (h *Handler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, err := h.tokens.Parse(req.RefreshToken)
	if err != nil || claims.Scope != auth.ScopeLedgerAdmin {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	tokens, err := h.tokens.IssuePair(claims.AdminID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

// ---------- Roster ----------

func (h *Handler) filteredStudents(ctx context.Context, class, search string) ([]roster.Student, error) {
	students, err := h.roster.Students(ctx)
	if err != nil {
		return nil, err
	}
	return roster.Filter(students, roster.MatchesClass(class), roster.MatchesSearch(search)), nil
}

// ListStudents returns the roster, optionally narrowed by class and a
// case-insensitive search over name and roll number.
func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.filteredStudents(c.Request.Context(), c.Query("class"), c.Query("search"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

// ListEnrollments returns the external enrollment records read-only.
func (h *Handler) ListEnrollments(c *gin.Context) {
	enrollments, err := h.roster.Enrollments(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enrollments": enrollments})
}

// ---------- Attendance ----------

// GetAttendance returns the day's mapping plus the summary over the
// filtered roster subset.
func (h *Handler) GetAttendance(c *gin.Context) {
	ctx := c.Request.Context()
	date := c.Param("date")
	marks, err := h.attendance.Load(ctx, date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	students, err := h.filteredStudents(ctx, c.Query("class"), c.Query("search"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"date":    date,
		"marks":   marks,
		"summary": attendance.Summarize(students, marks),
	})
}

// SaveAttendance persists the day's mapping wholesale and refreshes the
// history record. Marks before this call are volatile by design.
func (h *Handler) SaveAttendance(c *gin.Context) {
	var req struct {
		// An empty or absent mapping is legal: it saves an all-unmarked day.
		Marks map[roster.ID]attendance.Status `json:"marks"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	marks := attendance.DayMarks{}
	for id, status := range req.Marks {
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be present or absent"})
			return
		}
		marks[id] = status
	}

	ctx := c.Request.Context()
	students, err := h.roster.Students(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	date := c.Param("date")
	if err := h.attendance.Save(ctx, date, marks, len(students)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	metrics.AttendanceSaves.Inc()
	c.JSON(http.StatusOK, gin.H{
		"date":    date,
		"summary": attendance.Summarize(students, marks),
	})
}

// ExportAttendance streams the day's CSV for the filtered subset.
func (h *Handler) ExportAttendance(c *gin.Context) {
	ctx := c.Request.Context()
	date := c.Param("date")
	marks, err := h.attendance.Load(ctx, date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	students, err := h.filteredStudents(ctx, c.Query("class"), c.Query("search"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+attendance.ExportFilename(date)+`"`)
	c.Header("Content-Type", "text/csv")
	if err := attendance.WriteCSV(c.Writer, students, marks); err != nil {
		log.Printf("csv export failed: %v", err)
	}
}

// AttendanceHistory returns the materialized per-date summaries.
func (h *Handler) AttendanceHistory(c *gin.Context) {
	history, err := h.attendance.History(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// ---------- Fees ----------

type feeAccount struct {
	fees.Account
	Status string `json:"status"`
}

// ListFees returns the merged roster + fee view with derived statuses and
// the summary stats.
func (h *Handler) ListFees(c *gin.Context) {
	accounts, err := h.fees.Load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]feeAccount, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, feeAccount{Account: a, Status: fees.Status(a.Entry)})
	}
	c.JSON(http.StatusOK, gin.H{
		"accounts": out,
		"stats":    fees.SummaryStats(accounts),
	})
}

// RecordPayment appends a payment for one student. Zero, negative and
// non-numeric amounts are rejected before any mutation.
func (h *Handler) RecordPayment(c *gin.Context) {
	var req struct {
		Amount        float64 `json:"amount"`
		Method        string  `json:"method" binding:"required"`
		TransactionID string  `json:"transactionId"`
		Notes         string  `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payment, err := h.fees.RecordPayment(c.Request.Context(), roster.ID(c.Param("studentId")), req.Amount, req.Method, req.TransactionID, req.Notes)
	if err != nil {
		if errors.Is(err, fees.ErrInvalidAmount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	metrics.PaymentsRecorded.Inc()
	c.JSON(http.StatusCreated, gin.H{"payment": payment})
}

// ---------- Notifications ----------

// ListNotifications returns the log most-recent-first, optionally
// filtered to individual or bulk entries.
func (h *Handler) ListNotifications(c *gin.Context) {
	notifications, err := h.notify.List(c.Request.Context(), c.DefaultQuery("filter", "all"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// PreviewRecipients resolves a bulk selection without sending anything.
func (h *Handler) PreviewRecipients(c *gin.Context) {
	recipients, err := h.notify.ResolveRecipients(c.Request.Context(), c.DefaultQuery("type", notify.RecipientAll), c.Query("class"))
	if err != nil {
		if errors.Is(err, notify.ErrNoRecipients) || errors.Is(err, notify.ErrUnknownRecipientType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipients": recipients, "count": len(recipients)})
}

// SendNotification persists an individual or bulk notification, then
// hands the id to the delivery queue. The log write is durable before the
// publish; a failed publish only delays delivery stamping.
func (h *Handler) SendNotification(c *gin.Context) {
	var req struct {
		Type          string    `json:"type" binding:"required"`
		Title         string    `json:"title" binding:"required"`
		Message       string    `json:"message" binding:"required"`
		StudentID     roster.ID `json:"studentId"`
		RecipientType string    `json:"recipientType"`
		ClassName     string    `json:"className"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var (
		n   notify.Notification
		err error
	)
	switch req.Type {
	case notify.TypeIndividual:
		n, err = h.notify.SendIndividual(ctx, req.StudentID, req.Title, req.Message)
	case notify.TypeBulk:
		n, err = h.notify.SendBulk(ctx, req.RecipientType, req.ClassName, req.Title, req.Message)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be individual or bulk"})
		return
	}
	if err != nil {
		// Validation failures and ErrNoRecipients are both caller errors.
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	metrics.NotificationsSent.Inc()

	if h.queue != nil {
		publishCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		d := queue.Delivery{NotificationID: n.ID, EnqueuedAt: time.Now().UTC()}
		if err := h.queue.Publish(publishCtx, d); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
	}

	c.JSON(http.StatusCreated, gin.H{"notification": n})
}

// DeleteNotification removes by id; deleting an absent id is a no-op.
func (h *Handler) DeleteNotification(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be numeric"})
		return
	}
	if err := h.notify.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
