package client

import (
	"context"
	"sync"

	"hrms/internal/attendance"
	"hrms/internal/revision"
)

// API is the server surface the session drives. *Client implements it.
type API interface {
	AddEmployee(ctx context.Context, input attendance.NewEmployee) (attendance.Employee, error)
	ListEmployees(ctx context.Context) ([]attendance.EmployeeSummary, error)
	GetEmployee(ctx context.Context, employeeID string) (attendance.EmployeeSummary, error)
	DeleteEmployee(ctx context.Context, employeeID string) (string, error)
	MarkAttendance(ctx context.Context, input attendance.NewAttendance) (attendance.AttendanceRecord, error)
	DeleteAttendance(ctx context.Context, id string) (string, error)
	ListAttendance(ctx context.Context, employeeID string, filter attendance.Filter) ([]attendance.AttendanceRecord, error)
	Dashboard(ctx context.Context) (attendance.DashboardStats, error)
	Revisions(ctx context.Context) (revision.Revisions, error)
}

// RefreshTokens hold one monotonic counter per entity type. A view that
// loaded under lower tokens than the current ones must re-fetch.
type RefreshTokens struct {
	Employees  uint64 `json:"employees"`
	Attendance uint64 `json:"attendance"`
}

func (t RefreshTokens) get(entity attendance.Entity) uint64 {
	switch entity {
	case attendance.EntityEmployees:
		return t.Employees
	case attendance.EntityAttendance:
		return t.Attendance
	}
	return 0
}

// newerThan reports whether any of entities advanced since old.
func (t RefreshTokens) newerThan(old RefreshTokens, entities []attendance.Entity) bool {
	for _, entity := range entities {
		if t.get(entity) > old.get(entity) {
			return true
		}
	}
	return false
}

// Session is one logical client. Mutations go through it so that every
// acknowledged write bumps the refresh tokens of the entity types it touched.
// Nothing is applied locally before the server confirms it.
type Session struct {
	api API

	mu       sync.Mutex
	tokens   RefreshTokens
	seen     revision.Revisions
	baseline bool
}

func NewSession(api API) *Session {
	return &Session{api: api}
}

// Tokens returns the current refresh tokens.
func (s *Session) Tokens() RefreshTokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

// Invalidate bumps the tokens of entities.
func (s *Session) Invalidate(entities ...attendance.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entity := range entities {
		switch entity {
		case attendance.EntityEmployees:
			s.tokens.Employees++
		case attendance.EntityAttendance:
			s.tokens.Attendance++
		}
	}
}

func (s *Session) AddEmployee(ctx context.Context, input attendance.NewEmployee) (attendance.Employee, error) {
	employee, err := s.api.AddEmployee(ctx, input)
	if err != nil {
		return attendance.Employee{}, err
	}
	s.Invalidate(attendance.EntityEmployees)
	return employee, nil
}

// DeleteEmployee also invalidates attendance, since the server removed the
// employee's records with it.
func (s *Session) DeleteEmployee(ctx context.Context, employeeID string) (string, error) {
	message, err := s.api.DeleteEmployee(ctx, employeeID)
	if err != nil {
		return "", err
	}
	s.Invalidate(attendance.EntityEmployees, attendance.EntityAttendance)
	return message, nil
}

func (s *Session) MarkAttendance(ctx context.Context, input attendance.NewAttendance) (attendance.AttendanceRecord, error) {
	record, err := s.api.MarkAttendance(ctx, input)
	if err != nil {
		return attendance.AttendanceRecord{}, err
	}
	s.Invalidate(attendance.EntityAttendance)
	return record, nil
}

func (s *Session) DeleteAttendance(ctx context.Context, id string) (string, error) {
	message, err := s.api.DeleteAttendance(ctx, id)
	if err != nil {
		return "", err
	}
	s.Invalidate(attendance.EntityAttendance)
	return message, nil
}

// Poll fetches the server's revisions and invalidates every entity type
// whose revision moved since the previous poll, which picks up writes made
// by other sessions. The first poll only records a baseline.
func (s *Session) Poll(ctx context.Context) ([]attendance.Entity, error) {
	current, err := readWithRetry(ctx, s.api.Revisions)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	first := !s.baseline
	previous := s.seen
	s.seen, s.baseline = current, true
	s.mu.Unlock()

	if first {
		return nil, nil
	}

	var changed []attendance.Entity
	for _, entity := range []attendance.Entity{attendance.EntityEmployees, attendance.EntityAttendance} {
		if current.Get(entity) != previous.Get(entity) {
			changed = append(changed, entity)
		}
	}
	s.Invalidate(changed...)
	return changed, nil
}
