package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"hrms/internal/apperror"
)

// Repository is the Postgres record store. Schema lives in internal/store.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateEmployee inserts an employee. The primary key and the lower(email)
// unique index decide races between concurrent adds.
func (r *Repository) CreateEmployee(ctx context.Context, employee Employee) (Employee, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO employees (employee_id, full_name, email, department, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, employee.EmployeeID, employee.FullName, employee.Email, employee.Department, employee.CreatedAt)
	if err := row.Scan(&employee.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			if pgErr.ConstraintName == "employees_email_key" {
				return Employee{}, conflictEmail(employee.Email)
			}
			return Employee{}, conflictEmployeeID(employee.EmployeeID)
		}
		return Employee{}, mapStoreError("create employee", err)
	}
	employee.CreatedAt = employee.CreatedAt.UTC()
	return employee, nil
}

// GetEmployee returns a single employee by employee_id.
func (r *Repository) GetEmployee(ctx context.Context, employeeID string) (Employee, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT employee_id, full_name, email, department, created_at
		FROM employees WHERE employee_id = $1
	`, employeeID)
	employee, err := scanEmployee(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Employee{}, employeeNotFound(employeeID)
		}
		return Employee{}, mapStoreError("get employee", err)
	}
	return employee, nil
}

// ListEmployees returns all employees, newest first.
func (r *Repository) ListEmployees(ctx context.Context) ([]Employee, error) {
	employees, err := listEmployees(ctx, r.db)
	if err != nil {
		return nil, mapStoreError("list employees", err)
	}
	return employees, nil
}

// DeleteEmployeeCascade locks the employee row, then removes its records and
// the employee in one transaction. A concurrent CreateAttendance waits on the
// same row lock, so it either lands before the cascade and is removed by it,
// or runs after and finds no employee.
func (r *Repository) DeleteEmployeeCascade(ctx context.Context, employeeID string) (int, error) {
	var removed int
	err := r.inTx(ctx, nil, func(tx *sql.Tx) error {
		if err := lockEmployee(ctx, tx, employeeID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM attendance WHERE employee_id = $1`, employeeID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed = int(affected)

		if _, err := tx.ExecContext(ctx, `DELETE FROM employees WHERE employee_id = $1`, employeeID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, mapStoreError("delete employee", err)
	}
	return removed, nil
}

// CreateAttendance inserts a record while holding the owner's row lock, which
// also serialises the duplicate-date check per employee.
func (r *Repository) CreateAttendance(ctx context.Context, record AttendanceRecord, policy DuplicatePolicy) (AttendanceRecord, error) {
	day, err := time.Parse(DateLayout, record.Date)
	if err != nil {
		return AttendanceRecord{}, apperror.Wrap(apperror.KindValidation, "date must be a valid date in YYYY-MM-DD format", err)
	}

	err = r.inTx(ctx, nil, func(tx *sql.Tx) error {
		if err := lockEmployee(ctx, tx, record.EmployeeID); err != nil {
			return err
		}

		if policy != DuplicatesAllow {
			var exists bool
			if err := tx.QueryRowContext(ctx, `
				SELECT EXISTS (SELECT 1 FROM attendance WHERE employee_id = $1 AND date = $2)
			`, record.EmployeeID, day).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return duplicateDate(record.EmployeeID, record.Date)
			}
		}

		return tx.QueryRowContext(ctx, `
			INSERT INTO attendance (id, employee_id, date, status, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at
		`, record.ID, record.EmployeeID, day, string(record.Status), record.CreatedAt).Scan(&record.CreatedAt)
	})
	if err != nil {
		return AttendanceRecord{}, mapStoreError("create attendance", err)
	}
	record.CreatedAt = record.CreatedAt.UTC()
	return record, nil
}

// DeleteAttendance removes one record by id.
func (r *Repository) DeleteAttendance(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return attendanceNotFound(id)
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	if err != nil {
		return mapStoreError("delete attendance", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mapStoreError("delete attendance", err)
	}
	if affected == 0 {
		return attendanceNotFound(id)
	}
	return nil
}

// ListAttendance returns records with basic filters.
func (r *Repository) ListAttendance(ctx context.Context, employeeID string, filter Filter) ([]AttendanceRecord, error) {
	query := `SELECT id, employee_id, date, status, created_at FROM attendance`
	clauses := []string{"employee_id = $1"}
	args := []any{employeeID}

	if filter.FromDate != "" {
		day, err := time.Parse(DateLayout, filter.FromDate)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindValidation, "from_date must be a valid date in YYYY-MM-DD format", err)
		}
		args = append(args, day)
		clauses = append(clauses, "date >= $"+strconv.Itoa(len(args)))
	}
	if filter.ToDate != "" {
		day, err := time.Parse(DateLayout, filter.ToDate)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindValidation, "to_date must be a valid date in YYYY-MM-DD format", err)
		}
		args = append(args, day)
		clauses = append(clauses, "date <= $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, "status = $"+strconv.Itoa(len(args)))
	}
	query += " WHERE " + strings.Join(clauses, " AND ") + " ORDER BY date DESC, seq DESC"

	var records []AttendanceRecord
	err := r.inTx(ctx, &sql.TxOptions{ReadOnly: true}, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM employees WHERE employee_id = $1)
		`, employeeID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return employeeNotFound(employeeID)
		}

		var err error
		records, err = queryAttendance(ctx, tx, query, args...)
		return err
	})
	if err != nil {
		return nil, mapStoreError("list attendance", err)
	}
	return records, nil
}

// Snapshot reads every employee and record from one repeatable-read
// transaction so the aggregates never mix two states.
func (r *Repository) Snapshot(ctx context.Context) (Snapshot, error) {
	var snapshot Snapshot
	err := r.inTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, func(tx *sql.Tx) error {
		var err error
		if snapshot.Employees, err = listEmployees(ctx, tx); err != nil {
			return err
		}
		snapshot.Records, err = queryAttendance(ctx, tx, `
			SELECT id, employee_id, date, status, created_at FROM attendance ORDER BY seq
		`)
		return err
	})
	if err != nil {
		return Snapshot{}, mapStoreError("snapshot", err)
	}
	return snapshot, nil
}

// Ping verifies database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return mapStoreError("ping", err)
	}
	return nil
}

func (r *Repository) inTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func lockEmployee(ctx context.Context, tx *sql.Tx, employeeID string) error {
	var locked string
	err := tx.QueryRowContext(ctx, `
		SELECT employee_id FROM employees WHERE employee_id = $1 FOR UPDATE
	`, employeeID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return employeeNotFound(employeeID)
	}
	return err
}

func listEmployees(ctx context.Context, q queryer) ([]Employee, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT employee_id, full_name, email, department, created_at
		FROM employees
		ORDER BY seq DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	employees := []Employee{}
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, employee)
	}
	return employees, rows.Err()
}

func queryAttendance(ctx context.Context, q queryer, query string, args ...any) ([]AttendanceRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []AttendanceRecord{}
	for rows.Next() {
		var (
			record AttendanceRecord
			day    time.Time
			status string
		)
		if err := rows.Scan(&record.ID, &record.EmployeeID, &day, &status, &record.CreatedAt); err != nil {
			return nil, err
		}
		record.Date = day.Format(DateLayout)
		record.Status = Status(status)
		record.CreatedAt = record.CreatedAt.UTC()
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanEmployee(row rowScanner) (Employee, error) {
	var e Employee
	if err := row.Scan(&e.EmployeeID, &e.FullName, &e.Email, &e.Department, &e.CreatedAt); err != nil {
		return Employee{}, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// mapStoreError turns driver failures into apperror kinds. Errors that
// already carry a kind pass through untouched.
func mapStoreError(op string, err error) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperror.Wrap(apperror.KindStoreUnavailable, "record store timed out", fmt.Errorf("%s: %w", op, err))
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation:
			return apperror.Wrap(apperror.KindConflict, "resource with the same unique attributes already exists", err)
		case pgErr.Code == pgForeignKeyViolation:
			return apperror.Wrap(apperror.KindNotFound, "referenced employee not found", err)
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "53"),
			strings.HasPrefix(pgErr.Code, "57"), pgErr.Code == "40001", pgErr.Code == "40P01":
			return apperror.Wrap(apperror.KindStoreUnavailable, "record store unavailable", fmt.Errorf("%s: %w", op, err))
		}
		return apperror.Wrap(apperror.KindInternal, op+" failed", err)
	}

	return apperror.Wrap(apperror.KindStoreUnavailable, "record store unavailable", fmt.Errorf("%s: %w", op, err))
}
