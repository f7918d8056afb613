package attendance

import (
	"context"
	"sort"
	"strings"
	"sync"

	"hrms/internal/apperror"
)

// InMemory is a Store guarded by a single lock. Every operation, including
// the cascade, runs entirely under that lock, which gives it the same
// atomicity the Postgres store gets from transactions. Data does not survive
// a restart.
type InMemory struct {
	mu        sync.RWMutex
	seq       int64
	employees map[string]storedEmployee
	emails    map[string]string
	records   map[string]storedRecord
}

type storedEmployee struct {
	Employee
	seq int64
}

type storedRecord struct {
	AttendanceRecord
	seq int64
}

func NewInMemory() *InMemory {
	return &InMemory{
		employees: make(map[string]storedEmployee),
		emails:    make(map[string]string),
		records:   make(map[string]storedRecord),
	}
}

func (m *InMemory) CreateEmployee(ctx context.Context, employee Employee) (Employee, error) {
	if err := live(ctx); err != nil {
		return Employee{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.employees[employee.EmployeeID]; ok {
		return Employee{}, conflictEmployeeID(employee.EmployeeID)
	}
	emailKey := strings.ToLower(employee.Email)
	if _, ok := m.emails[emailKey]; ok {
		return Employee{}, conflictEmail(employee.Email)
	}

	m.seq++
	m.employees[employee.EmployeeID] = storedEmployee{Employee: employee, seq: m.seq}
	m.emails[emailKey] = employee.EmployeeID
	return employee, nil
}

func (m *InMemory) GetEmployee(ctx context.Context, employeeID string) (Employee, error) {
	if err := live(ctx); err != nil {
		return Employee{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.employees[employeeID]
	if !ok {
		return Employee{}, employeeNotFound(employeeID)
	}
	return stored.Employee, nil
}

func (m *InMemory) ListEmployees(ctx context.Context) ([]Employee, error) {
	if err := live(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.employeesLocked(), nil
}

func (m *InMemory) DeleteEmployeeCascade(ctx context.Context, employeeID string) (int, error) {
	if err := live(ctx); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.employees[employeeID]
	if !ok {
		return 0, employeeNotFound(employeeID)
	}

	removed := 0
	for id, record := range m.records {
		if record.EmployeeID == employeeID {
			delete(m.records, id)
			removed++
		}
	}
	delete(m.emails, strings.ToLower(stored.Email))
	delete(m.employees, employeeID)
	return removed, nil
}

func (m *InMemory) CreateAttendance(ctx context.Context, record AttendanceRecord, policy DuplicatePolicy) (AttendanceRecord, error) {
	if err := live(ctx); err != nil {
		return AttendanceRecord{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.employees[record.EmployeeID]; !ok {
		return AttendanceRecord{}, employeeNotFound(record.EmployeeID)
	}
	if _, ok := m.records[record.ID]; ok {
		return AttendanceRecord{}, apperror.Newf(apperror.KindConflict, "attendance record '%s' already exists.", record.ID)
	}
	if policy != DuplicatesAllow {
		for _, existing := range m.records {
			if existing.EmployeeID == record.EmployeeID && existing.Date == record.Date {
				return AttendanceRecord{}, duplicateDate(record.EmployeeID, record.Date)
			}
		}
	}

	m.seq++
	m.records[record.ID] = storedRecord{AttendanceRecord: record, seq: m.seq}
	return record, nil
}

func (m *InMemory) DeleteAttendance(ctx context.Context, id string) error {
	if err := live(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return attendanceNotFound(id)
	}
	delete(m.records, id)
	return nil
}

func (m *InMemory) ListAttendance(ctx context.Context, employeeID string, filter Filter) ([]AttendanceRecord, error) {
	if err := live(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.employees[employeeID]; !ok {
		return nil, employeeNotFound(employeeID)
	}

	matched := make([]storedRecord, 0)
	for _, record := range m.records {
		if record.EmployeeID == employeeID && filter.Matches(record.AttendanceRecord) {
			matched = append(matched, record)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Date != matched[j].Date {
			return matched[i].Date > matched[j].Date
		}
		return matched[i].seq > matched[j].seq
	})

	result := make([]AttendanceRecord, 0, len(matched))
	for _, record := range matched {
		result = append(result, record.AttendanceRecord)
	}
	return result, nil
}

func (m *InMemory) Snapshot(ctx context.Context) (Snapshot, error) {
	if err := live(ctx); err != nil {
		return Snapshot{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := make([]storedRecord, 0, len(m.records))
	for _, record := range m.records {
		stored = append(stored, record)
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].seq < stored[j].seq })

	records := make([]AttendanceRecord, 0, len(stored))
	for _, record := range stored {
		records = append(records, record.AttendanceRecord)
	}
	return Snapshot{Employees: m.employeesLocked(), Records: records}, nil
}

func (m *InMemory) Ping(ctx context.Context) error {
	return live(ctx)
}

// employeesLocked returns employees newest first. Callers hold m.mu.
func (m *InMemory) employeesLocked() []Employee {
	stored := make([]storedEmployee, 0, len(m.employees))
	for _, employee := range m.employees {
		stored = append(stored, employee)
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].seq > stored[j].seq })

	result := make([]Employee, 0, len(stored))
	for _, employee := range stored {
		result = append(result, employee.Employee)
	}
	return result
}

func live(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return apperror.Wrap(apperror.KindStoreUnavailable, "record store request cancelled", err)
	}
	return nil
}
