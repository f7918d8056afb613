package attendance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"hrms/internal/apperror"
	"hrms/internal/metrics"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Service validates commands, applies them to the record store and computes
// the derived views. It holds no mutable domain state of its own.
type Service struct {
	store      Store
	publisher  Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	location   *time.Location
	duplicates DuplicatePolicy
	timeout    time.Duration
	publishFor time.Duration
	validate   *validator.Validate
}

type Option func(*Service)

func WithPublisher(publisher Publisher) Option {
	return func(s *Service) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces the wall clock used for created_at and "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation pins the zone in which "today" is evaluated.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithDuplicatePolicy(policy DuplicatePolicy) Option {
	return func(s *Service) {
		if policy != "" {
			s.duplicates = policy
		}
	}
}

// WithStoreTimeout bounds every record store call.
func WithStoreTimeout(timeout time.Duration) Option {
	return func(s *Service) { s.timeout = timeout }
}

// WithPublishTimeout bounds how long an acknowledged mutation waits on the
// change feed before the change is dropped with a warning.
func WithPublishTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.publishFor = timeout
		}
	}
}

// NewService creates a service backed by a record store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		publisher:  noopPublisher{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
		location:   time.UTC,
		duplicates: DuplicatesReject,
		timeout:    5 * time.Second,
		publishFor: time.Second,
		validate:   newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the current calendar date in the configured zone.
func (s *Service) Today() string {
	return s.now().In(s.location).Format(DateLayout)
}

// AddEmployee persists a new employee exactly as given, after trimming.
func (s *Service) AddEmployee(ctx context.Context, input NewEmployee) (Employee, error) {
	const op = "add_employee"

	input = input.normalize()
	if err := s.check(input); err != nil {
		s.observe(op, err)
		return Employee{}, err
	}

	var created Employee
	err := s.call(ctx, op, func(ctx context.Context) error {
		var err error
		created, err = s.store.CreateEmployee(ctx, Employee{
			EmployeeID: input.EmployeeID,
			FullName:   input.FullName,
			Email:      input.Email,
			Department: input.Department,
			CreatedAt:  s.now().UTC(),
		})
		return err
	})
	if err != nil {
		return Employee{}, s.fail(op, err, "employee_id", input.EmployeeID)
	}

	s.logger.InfoContext(ctx, "employee added", "employee_id", created.EmployeeID, "department", created.Department)
	s.announce(ctx, Change{Entity: EntityEmployees, Op: OpCreated, ID: created.EmployeeID})
	return created, nil
}

// DeleteEmployee removes the employee and all of its attendance records. It
// returns how many records were removed with it.
func (s *Service) DeleteEmployee(ctx context.Context, employeeID string) (int, error) {
	const op = "delete_employee"

	employeeID, err := requireID(employeeID, "employee_id")
	if err != nil {
		s.observe(op, err)
		return 0, err
	}

	var removed int
	err = s.call(ctx, op, func(ctx context.Context) error {
		var err error
		removed, err = s.store.DeleteEmployeeCascade(ctx, employeeID)
		return err
	})
	if err != nil {
		return 0, s.fail(op, err, "employee_id", employeeID)
	}

	s.logger.InfoContext(ctx, "employee deleted", "employee_id", employeeID, "attendance_removed", removed)
	s.announce(ctx, Change{Entity: EntityEmployees, Op: OpDeleted, ID: employeeID})
	return removed, nil
}

// GetEmployee returns one employee with fresh totals.
func (s *Service) GetEmployee(ctx context.Context, employeeID string) (EmployeeSummary, error) {
	const op = "get_employee"

	employeeID, err := requireID(employeeID, "employee_id")
	if err != nil {
		s.observe(op, err)
		return EmployeeSummary{}, err
	}

	var (
		employee Employee
		records  []AttendanceRecord
	)
	err = s.call(ctx, op, func(ctx context.Context) error {
		var err error
		if employee, err = s.store.GetEmployee(ctx, employeeID); err != nil {
			return err
		}
		records, err = s.store.ListAttendance(ctx, employeeID, Filter{})
		return err
	})
	if err != nil {
		return EmployeeSummary{}, s.fail(op, err, "employee_id", employeeID)
	}

	return EmployeeSummary{Employee: employee, Totals: TotalsFor(records)}, nil
}

// ListEmployees returns every employee, newest first, with totals computed
// from the store at call time.
func (s *Service) ListEmployees(ctx context.Context) ([]EmployeeSummary, error) {
	const op = "list_employees"

	snapshot, err := s.snapshot(ctx, op)
	if err != nil {
		return nil, err
	}
	return Summaries(snapshot.Employees, snapshot.Records), nil
}

// MarkAttendance records a status for an existing employee on a date.
func (s *Service) MarkAttendance(ctx context.Context, input NewAttendance) (AttendanceRecord, error) {
	const op = "mark_attendance"

	input = input.normalize()
	if err := s.check(input); err != nil {
		s.observe(op, err)
		return AttendanceRecord{}, err
	}

	var created AttendanceRecord
	err := s.call(ctx, op, func(ctx context.Context) error {
		var err error
		created, err = s.store.CreateAttendance(ctx, AttendanceRecord{
			ID:         uuid.NewString(),
			EmployeeID: input.EmployeeID,
			Date:       input.Date,
			Status:     input.Status,
			CreatedAt:  s.now().UTC(),
		}, s.duplicates)
		return err
	})
	if err != nil {
		return AttendanceRecord{}, s.fail(op, err, "employee_id", input.EmployeeID, "date", input.Date)
	}

	s.logger.InfoContext(ctx, "attendance marked",
		"id", created.ID, "employee_id", created.EmployeeID, "date", created.Date, "status", created.Status)
	s.announce(ctx, Change{Entity: EntityAttendance, Op: OpCreated, ID: created.ID})
	return created, nil
}

// DeleteAttendance removes exactly one record.
func (s *Service) DeleteAttendance(ctx context.Context, id string) error {
	const op = "delete_attendance"

	id, err := requireID(id, "id")
	if err != nil {
		s.observe(op, err)
		return err
	}

	err = s.call(ctx, op, func(ctx context.Context) error {
		return s.store.DeleteAttendance(ctx, id)
	})
	if err != nil {
		return s.fail(op, err, "id", id)
	}

	s.logger.InfoContext(ctx, "attendance deleted", "id", id)
	s.announce(ctx, Change{Entity: EntityAttendance, Op: OpDeleted, ID: id})
	return nil
}

// ListAttendance returns the employee's records matching filter, most recent
// first. An unknown employee is a not_found failure, not an empty list.
func (s *Service) ListAttendance(ctx context.Context, employeeID string, filter Filter) ([]AttendanceRecord, error) {
	const op = "list_attendance"

	employeeID, err := requireID(employeeID, "employee_id")
	if err == nil {
		filter = filter.normalize()
		err = s.checkFilter(filter)
	}
	if err != nil {
		s.observe(op, err)
		return nil, err
	}

	var records []AttendanceRecord
	err = s.call(ctx, op, func(ctx context.Context) error {
		var err error
		records, err = s.store.ListAttendance(ctx, employeeID, filter)
		return err
	})
	if err != nil {
		return nil, s.fail(op, err, "employee_id", employeeID)
	}
	if records == nil {
		records = []AttendanceRecord{}
	}
	return records, nil
}

// Dashboard computes the process-wide statistics for Today.
func (s *Service) Dashboard(ctx context.Context) (DashboardStats, error) {
	const op = "dashboard"

	snapshot, err := s.snapshot(ctx, op)
	if err != nil {
		return DashboardStats{}, err
	}
	return Dashboard(snapshot, s.Today()), nil
}

// Ping reports whether the record store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.Ping(ctx)
}

func (s *Service) snapshot(ctx context.Context, op string) (Snapshot, error) {
	var snapshot Snapshot
	err := s.call(ctx, op, func(ctx context.Context) error {
		var err error
		snapshot, err = s.store.Snapshot(ctx)
		return err
	})
	if err != nil {
		return Snapshot{}, s.fail(op, err)
	}
	return snapshot, nil
}

// call runs fn against the store under the store timeout and records its
// latency and outcome.
func (s *Service) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	s.metrics.ObserveStore(op, time.Since(start))
	s.observe(op, err)
	return err
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(apperror.KindOf(err))
	}
	s.metrics.ObserveOperation(op, outcome)
}

// fail makes sure every error leaving the service carries a kind, and logs
// the ones a caller cannot act on.
func (s *Service) fail(op string, err error, attrs ...any) error {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		if apperror.KindOf(err) == apperror.KindStoreUnavailable {
			err = apperror.Wrap(apperror.KindStoreUnavailable, "record store unavailable", err)
		} else {
			err = apperror.Wrap(apperror.KindInternal, fmt.Sprintf("%s failed", op), err)
		}
	}

	switch apperror.KindOf(err) {
	case apperror.KindStoreUnavailable, apperror.KindInternal:
		s.logger.Error("store operation failed", append([]any{"operation", op, "error", errors.Unwrap(err)}, attrs...)...)
	}
	return err
}

// announce publishes a change after the store acknowledged it. A publish
// failure never undoes or fails the mutation.
func (s *Service) announce(ctx context.Context, change Change) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishFor)
	defer cancel()

	if err := s.publisher.Publish(ctx, change); err != nil {
		s.logger.Warn("change publish failed",
			"entity", change.Entity, "op", change.Op, "id", change.ID, "error", err)
	}
}

func (s *Service) check(input any) error {
	if err := s.validate.Struct(input); err != nil {
		return validationError(err)
	}
	return nil
}

func (s *Service) checkFilter(filter Filter) error {
	if err := s.check(filter); err != nil {
		return err
	}
	if filter.FromDate != "" && filter.ToDate != "" && filter.FromDate > filter.ToDate {
		return apperror.New(apperror.KindValidation, "from_date must not be after to_date")
	}
	return nil
}

func requireID(raw, field string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", apperror.Newf(apperror.KindValidation, "%s is required", field)
	}
	return value, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("email_shape", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return v
}

// validationError reports the first failing field in caller terms.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.Wrap(apperror.KindValidation, "invalid input", err)
	}

	fe := fieldErrs[0]
	var message string
	switch fe.Tag() {
	case "required":
		message = fmt.Sprintf("%s is required", fe.Field())
	case "max":
		message = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "email_shape":
		message = fmt.Sprintf("%s must look like name@domain.tld", fe.Field())
	case "datetime":
		message = fmt.Sprintf("%s must be a valid date in YYYY-MM-DD format", fe.Field())
	case "excludesall":
		message = fmt.Sprintf("%s must not contain %q", fe.Field(), fe.Param())
	case "oneof":
		message = fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		message = fmt.Sprintf("%s is invalid", fe.Field())
	}
	return apperror.Wrap(apperror.KindValidation, message, err)
}
