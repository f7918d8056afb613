package client

import (
	"context"
	"strings"
	"sync"

	"hrms/internal/apperror"
	"hrms/internal/attendance"
)

// EmployeesState is everything the employee table renders.
type EmployeesState struct {
	Search    string                       `json:"search"`
	Employees []attendance.EmployeeSummary `json:"employees"`
	Total     int                          `json:"total"`
	Loaded    bool                         `json:"loaded"`
	Stale     bool                         `json:"stale"`
	Error     string                       `json:"error,omitempty"`
}

// EmployeesView lists employees with their totals and filters them locally.
// Totals depend on attendance, so attendance writes also make it stale.
type EmployeesView struct {
	api  API
	list *view[[]attendance.EmployeeSummary]

	mu     sync.Mutex
	search string
}

func NewEmployeesView(session *Session) *EmployeesView {
	return &EmployeesView{
		api:  session.api,
		list: newView[[]attendance.EmployeeSummary](session, attendance.EntityEmployees, attendance.EntityAttendance),
	}
}

func (v *EmployeesView) Refresh(ctx context.Context) error {
	return v.list.load(ctx, v.api.ListEmployees)
}

// Sync refreshes only when a dependent refresh token moved.
func (v *EmployeesView) Sync(ctx context.Context) error {
	if !v.list.stale() {
		return nil
	}
	return v.Refresh(ctx)
}

// SetSearch never contacts the server.
func (v *EmployeesView) SetSearch(search string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.search = search
}

func (v *EmployeesView) State() EmployeesState {
	v.mu.Lock()
	search := v.search
	v.mu.Unlock()

	employees, loaded, err := v.list.snapshot()
	shown := make([]attendance.EmployeeSummary, 0, len(employees))
	for _, employee := range employees {
		if MatchesSearch(employee.Employee, search) {
			shown = append(shown, employee)
		}
	}

	return EmployeesState{
		Search:    search,
		Employees: shown,
		Total:     len(employees),
		Loaded:    loaded,
		Stale:     v.list.stale(),
		Error:     Message(err),
	}
}

// MatchesSearch is a case-insensitive substring match against the id, name,
// email and department. An empty search matches everyone.
func MatchesSearch(employee attendance.Employee, search string) bool {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return true
	}
	for _, field := range []string{employee.EmployeeID, employee.FullName, employee.Email, employee.Department} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// AttendanceState is everything the attendance table renders.
type AttendanceState struct {
	EmployeeID string                        `json:"employee_id"`
	Filter     attendance.Filter             `json:"filter"`
	Records    []attendance.AttendanceRecord `json:"records"`
	Loaded     bool                          `json:"loaded"`
	Stale      bool                          `json:"stale"`
	Error      string                        `json:"error,omitempty"`
}

// AttendanceView shows one employee's records under a server-side filter.
type AttendanceView struct {
	api     API
	records *view[[]attendance.AttendanceRecord]

	mu         sync.Mutex
	employeeID string
	filter     attendance.Filter
}

func NewAttendanceView(session *Session) *AttendanceView {
	return &AttendanceView{
		api:     session.api,
		records: newView[[]attendance.AttendanceRecord](session, attendance.EntityAttendance, attendance.EntityEmployees),
	}
}

// SetEmployee selects whose records are shown. Responses for a previous
// selection that are still in flight will be discarded.
func (v *AttendanceView) SetEmployee(employeeID string) {
	v.mu.Lock()
	v.employeeID = strings.TrimSpace(employeeID)
	v.mu.Unlock()
	v.records.invalidate()
}

func (v *AttendanceView) SetFilter(filter attendance.Filter) {
	v.mu.Lock()
	v.filter = filter
	v.mu.Unlock()
	v.records.invalidate()
}

func (v *AttendanceView) Refresh(ctx context.Context) error {
	v.mu.Lock()
	employeeID, filter := v.employeeID, v.filter
	v.mu.Unlock()

	if employeeID == "" {
		return apperror.New(apperror.KindValidation, "select an employee first")
	}
	return v.records.load(ctx, func(ctx context.Context) ([]attendance.AttendanceRecord, error) {
		return v.api.ListAttendance(ctx, employeeID, filter)
	})
}

func (v *AttendanceView) Sync(ctx context.Context) error {
	if !v.records.stale() {
		return nil
	}
	return v.Refresh(ctx)
}

func (v *AttendanceView) State() AttendanceState {
	v.mu.Lock()
	employeeID, filter := v.employeeID, v.filter
	v.mu.Unlock()

	records, loaded, err := v.records.snapshot()
	if records == nil {
		records = []attendance.AttendanceRecord{}
	}
	return AttendanceState{
		EmployeeID: employeeID,
		Filter:     filter,
		Records:    records,
		Loaded:     loaded,
		Stale:      v.records.stale(),
		Error:      Message(err),
	}
}

// DashboardState is everything the dashboard renders.
type DashboardState struct {
	Stats  attendance.DashboardStats `json:"stats"`
	Loaded bool                      `json:"loaded"`
	Stale  bool                      `json:"stale"`
	Error  string                    `json:"error,omitempty"`
}

type DashboardView struct {
	api   API
	stats *view[attendance.DashboardStats]
}

func NewDashboardView(session *Session) *DashboardView {
	return &DashboardView{
		api:   session.api,
		stats: newView[attendance.DashboardStats](session, attendance.EntityEmployees, attendance.EntityAttendance),
	}
}

func (v *DashboardView) Refresh(ctx context.Context) error {
	return v.stats.load(ctx, v.api.Dashboard)
}

func (v *DashboardView) Sync(ctx context.Context) error {
	if !v.stats.stale() {
		return nil
	}
	return v.Refresh(ctx)
}

func (v *DashboardView) State() DashboardState {
	stats, loaded, err := v.stats.snapshot()
	return DashboardState{
		Stats:  stats,
		Loaded: loaded,
		Stale:  v.stats.stale(),
		Error:  Message(err),
	}
}
