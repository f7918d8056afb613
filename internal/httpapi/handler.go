package httpapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"hrms/internal/apperror"
	"hrms/internal/attendance"
	"hrms/internal/revision"
)

// Service is the domain surface exposed over HTTP.
type Service interface {
	AddEmployee(ctx context.Context, input attendance.NewEmployee) (attendance.Employee, error)
	DeleteEmployee(ctx context.Context, employeeID string) (int, error)
	GetEmployee(ctx context.Context, employeeID string) (attendance.EmployeeSummary, error)
	ListEmployees(ctx context.Context) ([]attendance.EmployeeSummary, error)
	MarkAttendance(ctx context.Context, input attendance.NewAttendance) (attendance.AttendanceRecord, error)
	DeleteAttendance(ctx context.Context, id string) error
	ListAttendance(ctx context.Context, employeeID string, filter attendance.Filter) ([]attendance.AttendanceRecord, error)
	Dashboard(ctx context.Context) (attendance.DashboardStats, error)
	Ping(ctx context.Context) error
}

// RevisionSource reports the current change-feed revisions.
type RevisionSource interface {
	Current(ctx context.Context) (revision.Revisions, error)
}

// HealthCheck probes one dependency for /healthz.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	svc       Service
	revisions RevisionSource
	logger    *slog.Logger
	checks    map[string]HealthCheck
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithHealthCheck adds a named dependency probe to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) { h.checks[name] = check }
}

func NewHandler(svc Service, revisions RevisionSource, opts ...Option) *Handler {
	h := &Handler{
		svc:       svc,
		revisions: revisions,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		checks:    make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the health endpoints at the root and the API under /v1.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/", h.root)
	r.GET("/health", h.health)
	r.GET("/healthz", h.healthz)

	v1 := r.Group("/v1")
	v1.POST("/employees", h.addEmployee)
	v1.GET("/employees", h.listEmployees)
	v1.GET("/employees/:employee_id", h.getEmployee)
	v1.DELETE("/employees/:employee_id", h.deleteEmployee)
	v1.GET("/employees/:employee_id/attendance", h.listAttendance)
	v1.POST("/attendance", h.markAttendance)
	v1.DELETE("/attendance/:id", h.deleteAttendance)
	v1.GET("/dashboard", h.dashboard)
	v1.GET("/revisions", h.currentRevisions)
}

func (h *Handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "HRMS API is running"})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) healthz(c *gin.Context) {
	ctx := c.Request.Context()
	status := http.StatusOK
	deps := gin.H{}

	probes := map[string]HealthCheck{"store": h.svc.Ping}
	for name, check := range h.checks {
		probes[name] = check
	}
	for name, check := range probes {
		healthy := check(ctx) == nil
		deps[name] = healthy
		if !healthy {
			status = http.StatusServiceUnavailable
		}
	}

	deps["status"] = "ok"
	if status != http.StatusOK {
		deps["status"] = "degraded"
	}
	c.JSON(status, deps)
}

func (h *Handler) addEmployee(c *gin.Context) {
	var input attendance.NewEmployee
	if !h.bind(c, &input) {
		return
	}

	employee, err := h.svc.AddEmployee(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, employee)
}

func (h *Handler) listEmployees(c *gin.Context) {
	employees, err := h.svc.ListEmployees(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, employees)
}

func (h *Handler) getEmployee(c *gin.Context) {
	employee, err := h.svc.GetEmployee(c.Request.Context(), c.Param("employee_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, employee)
}

func (h *Handler) deleteEmployee(c *gin.Context) {
	employeeID := c.Param("employee_id")
	removed, err := h.svc.DeleteEmployee(c.Request.Context(), employeeID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Employee '%s' and %d attendance record(s) deleted.", employeeID, removed),
	})
}

func (h *Handler) markAttendance(c *gin.Context) {
	var input attendance.NewAttendance
	if !h.bind(c, &input) {
		return
	}

	record, err := h.svc.MarkAttendance(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *Handler) listAttendance(c *gin.Context) {
	filter := attendance.Filter{
		FromDate: c.Query("from_date"),
		ToDate:   c.Query("to_date"),
		Status:   attendance.Status(c.Query("status")),
	}

	records, err := h.svc.ListAttendance(c.Request.Context(), c.Param("employee_id"), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) deleteAttendance(c *gin.Context) {
	if err := h.svc.DeleteAttendance(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Attendance record deleted successfully."})
}

func (h *Handler) dashboard(c *gin.Context) {
	stats, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) currentRevisions(c *gin.Context) {
	current, err := h.revisions.Current(c.Request.Context())
	if err != nil {
		h.respondError(c, apperror.Wrap(apperror.KindStoreUnavailable, "revisions unavailable", err))
		return
	}
	c.JSON(http.StatusOK, current)
}

// bind decodes a JSON body. Field rules are checked by the service, so only
// syntax errors are reported here.
func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.respondError(c, apperror.Wrap(apperror.KindValidation, "request body must be a valid JSON object", err))
		return false
	}
	return true
}
