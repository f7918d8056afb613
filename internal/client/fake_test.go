package client

import (
	"context"

	"hrms/internal/attendance"
	"hrms/internal/revision"
)

// fakeAPI lets each test script only the calls it cares about.
type fakeAPI struct {
	addEmployee      func(context.Context, attendance.NewEmployee) (attendance.Employee, error)
	listEmployees    func(context.Context) ([]attendance.EmployeeSummary, error)
	deleteEmployee   func(context.Context, string) (string, error)
	markAttendance   func(context.Context, attendance.NewAttendance) (attendance.AttendanceRecord, error)
	deleteAttendance func(context.Context, string) (string, error)
	listAttendance   func(context.Context, string, attendance.Filter) ([]attendance.AttendanceRecord, error)
	dashboard        func(context.Context) (attendance.DashboardStats, error)
	revisions        func(context.Context) (revision.Revisions, error)
}

func (f *fakeAPI) AddEmployee(ctx context.Context, in attendance.NewEmployee) (attendance.Employee, error) {
	return f.addEmployee(ctx, in)
}

func (f *fakeAPI) ListEmployees(ctx context.Context) ([]attendance.EmployeeSummary, error) {
	return f.listEmployees(ctx)
}

func (f *fakeAPI) GetEmployee(context.Context, string) (attendance.EmployeeSummary, error) {
	panic("not scripted")
}

func (f *fakeAPI) DeleteEmployee(ctx context.Context, id string) (string, error) {
	return f.deleteEmployee(ctx, id)
}

func (f *fakeAPI) MarkAttendance(ctx context.Context, in attendance.NewAttendance) (attendance.AttendanceRecord, error) {
	return f.markAttendance(ctx, in)
}

func (f *fakeAPI) DeleteAttendance(ctx context.Context, id string) (string, error) {
	return f.deleteAttendance(ctx, id)
}

func (f *fakeAPI) ListAttendance(ctx context.Context, id string, filter attendance.Filter) ([]attendance.AttendanceRecord, error) {
	return f.listAttendance(ctx, id, filter)
}

func (f *fakeAPI) Dashboard(ctx context.Context) (attendance.DashboardStats, error) {
	return f.dashboard(ctx)
}

func (f *fakeAPI) Revisions(ctx context.Context) (revision.Revisions, error) {
	return f.revisions(ctx)
}
