package attendance

import "context"

// Store is the record store the service depends on. Implementations own all
// atomicity: uniqueness of employee ids and emails, the employee existence
// check in CreateAttendance, and the cascade in DeleteEmployeeCascade.
//
// Failures carry an apperror kind: not_found and conflict for domain facts,
// store_unavailable for persistence outages and timeouts.
type Store interface {
	CreateEmployee(ctx context.Context, employee Employee) (Employee, error)
	GetEmployee(ctx context.Context, employeeID string) (Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	// DeleteEmployeeCascade removes the employee and every record it owns as
	// one unit and reports how many records went with it.
	DeleteEmployeeCascade(ctx context.Context, employeeID string) (int, error)

	CreateAttendance(ctx context.Context, record AttendanceRecord, policy DuplicatePolicy) (AttendanceRecord, error)
	DeleteAttendance(ctx context.Context, id string) error
	// ListAttendance returns the employee's matching records, date descending
	// then most recently inserted first.
	ListAttendance(ctx context.Context, employeeID string, filter Filter) ([]AttendanceRecord, error)

	Snapshot(ctx context.Context) (Snapshot, error)
	Ping(ctx context.Context) error
}
