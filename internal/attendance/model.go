package attendance

import (
	"strings"
	"time"
)

// DateLayout is the wire and storage form of a calendar date.
const DateLayout = "2006-01-02"

// Status is the outcome recorded for one employee on one day.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
)

// NormalizeStatus maps any casing of a known status to its canonical form.
// Unknown values are returned trimmed but otherwise untouched so validation
// can reject them.
func NormalizeStatus(raw string) Status {
	value := strings.TrimSpace(raw)
	switch {
	case strings.EqualFold(value, string(StatusPresent)):
		return StatusPresent
	case strings.EqualFold(value, string(StatusAbsent)):
		return StatusAbsent
	}
	return Status(value)
}

// Employee is keyed by a caller-chosen identifier that never changes.
type Employee struct {
	EmployeeID string    `json:"employee_id"`
	FullName   string    `json:"full_name"`
	Email      string    `json:"email"`
	Department string    `json:"department"`
	CreatedAt  time.Time `json:"created_at"`
}

// Totals are derived from the attendance records owned by an employee.
type Totals struct {
	TotalPresent int `json:"total_present"`
	TotalAbsent  int `json:"total_absent"`
	TotalRecords int `json:"total_records"`
}

// EmployeeSummary is an employee together with totals computed at read time.
type EmployeeSummary struct {
	Employee
	Totals
}

// AttendanceRecord is one dated observation owned by exactly one employee.
type AttendanceRecord struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employee_id"`
	Date       string    `json:"date"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewEmployee is the input of AddEmployee.
type NewEmployee struct {
	EmployeeID string `json:"employee_id" validate:"required,max=50,excludesall=/"`
	FullName   string `json:"full_name" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,max=150,email_shape"`
	Department string `json:"department" validate:"required,max=100"`
}

func (in NewEmployee) normalize() NewEmployee {
	return NewEmployee{
		EmployeeID: strings.TrimSpace(in.EmployeeID),
		FullName:   strings.TrimSpace(in.FullName),
		Email:      strings.TrimSpace(in.Email),
		Department: strings.TrimSpace(in.Department),
	}
}

// NewAttendance is the input of MarkAttendance.
type NewAttendance struct {
	EmployeeID string `json:"employee_id" validate:"required,max=50,excludesall=/"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	Status     Status `json:"status" validate:"required,oneof=Present Absent"`
}

func (in NewAttendance) normalize() NewAttendance {
	return NewAttendance{
		EmployeeID: strings.TrimSpace(in.EmployeeID),
		Date:       strings.TrimSpace(in.Date),
		Status:     NormalizeStatus(string(in.Status)),
	}
}

// Filter narrows ListAttendance. Empty fields do not constrain; set fields
// are combined with AND.
type Filter struct {
	FromDate string `json:"from_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ToDate   string `json:"to_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Status   Status `json:"status,omitempty" validate:"omitempty,oneof=Present Absent"`
}

func (f Filter) normalize() Filter {
	return Filter{
		FromDate: strings.TrimSpace(f.FromDate),
		ToDate:   strings.TrimSpace(f.ToDate),
		Status:   NormalizeStatus(string(f.Status)),
	}
}

// Matches relies on DateLayout sorting lexically in calendar order.
func (f Filter) Matches(record AttendanceRecord) bool {
	if f.FromDate != "" && record.Date < f.FromDate {
		return false
	}
	if f.ToDate != "" && record.Date > f.ToDate {
		return false
	}
	if f.Status != "" && record.Status != f.Status {
		return false
	}
	return true
}

// DuplicatePolicy decides what MarkAttendance does when the employee already
// has a record for the same date.
type DuplicatePolicy string

const (
	DuplicatesReject DuplicatePolicy = "reject"
	DuplicatesAllow  DuplicatePolicy = "allow"
)

// DashboardStats are process-wide aggregates over the current data set.
type DashboardStats struct {
	Date                   string   `json:"date"`
	TotalEmployees         int      `json:"total_employees"`
	TotalAttendanceRecords int      `json:"total_attendance_records"`
	PresentToday           int      `json:"present_today"`
	AbsentToday            int      `json:"absent_today"`
	Departments            []string `json:"departments"`
}

// Snapshot is a consistent read of every employee and attendance record.
// Employees are ordered newest first.
type Snapshot struct {
	Employees []Employee
	Records   []AttendanceRecord
}

// Entity names a mutated entity type in change notifications.
type Entity string

const (
	EntityEmployees  Entity = "employees"
	EntityAttendance Entity = "attendance"
)

// Change describes one acknowledged mutation.
type Change struct {
	Entity Entity `json:"entity"`
	Op     string `json:"op"`
	ID     string `json:"id"`
}

const (
	OpCreated = "created"
	OpDeleted = "deleted"
)
