package attendance_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"hrms/internal/apperror"
	"hrms/internal/attendance"
	"hrms/internal/attendance/mocks"
	"hrms/internal/queue"
	"hrms/internal/revision"
)

var fixedNow = time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	publisher *mocks.MockPublisher
	store     *attendance.InMemory
	svc       *attendance.Service
	ctx       context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	s.store = attendance.NewInMemory()
	s.ctx = context.Background()
	s.svc = attendance.NewService(s.store,
		attendance.WithPublisher(s.publisher),
		attendance.WithClock(func() time.Time { return fixedNow }),
	)
}

func (s *ServiceSuite) expectChange(entity attendance.Entity, op string) {
	s.publisher.EXPECT().
		Publish(gomock.Any(), gomock.Cond(func(c attendance.Change) bool {
			return c.Entity == entity && c.Op == op
		})).
		Return(nil)
}

func (s *ServiceSuite) addEmployee(id, email, department string) attendance.Employee {
	s.expectChange(attendance.EntityEmployees, attendance.OpCreated)
	employee, err := s.svc.AddEmployee(s.ctx, attendance.NewEmployee{
		EmployeeID: id, FullName: "Name " + id, Email: email, Department: department,
	})
	s.Require().NoError(err)
	return employee
}

func (s *ServiceSuite) mark(employeeID, date string, status attendance.Status) attendance.AttendanceRecord {
	s.expectChange(attendance.EntityAttendance, attendance.OpCreated)
	record, err := s.svc.MarkAttendance(s.ctx, attendance.NewAttendance{EmployeeID: employeeID, Date: date, Status: status})
	s.Require().NoError(err)
	return record
}

func (s *ServiceSuite) TestAddEmployeeReturnsInputUnchanged() {
	s.expectChange(attendance.EntityEmployees, attendance.OpCreated)
	employee, err := s.svc.AddEmployee(s.ctx, attendance.NewEmployee{
		EmployeeID: "  EMP001 ", FullName: "Asha Rao", Email: "asha@co.com", Department: "Engineering",
	})
	s.Require().NoError(err)
	s.Equal("EMP001", employee.EmployeeID)
	s.Equal("Asha Rao", employee.FullName)
	s.Equal("asha@co.com", employee.Email)
	s.Equal("Engineering", employee.Department)
	s.Equal(fixedNow, employee.CreatedAt)
}

func (s *ServiceSuite) TestAddEmployeeValidation() {
	cases := []struct {
		name    string
		input   attendance.NewEmployee
		message string
	}{
		{"missing id", attendance.NewEmployee{FullName: "A", Email: "a@b.co", Department: "D"}, "employee_id is required"},
		{"blank name", attendance.NewEmployee{EmployeeID: "E", FullName: "   ", Email: "a@b.co", Department: "D"}, "full_name is required"},
		{"bad email", attendance.NewEmployee{EmployeeID: "E", FullName: "A", Email: "a@b", Department: "D"}, "email must look like name@domain.tld"},
		{"missing department", attendance.NewEmployee{EmployeeID: "E", FullName: "A", Email: "a@b.co"}, "department is required"},
		{"id too long", attendance.NewEmployee{EmployeeID: string(make([]byte, 51)), FullName: "A", Email: "a@b.co", Department: "D"}, "employee_id must be at most 50 characters"},
		{"slash in id", attendance.NewEmployee{EmployeeID: "ENG/001", FullName: "A", Email: "a@b.co", Department: "D"}, `employee_id must not contain "/"`},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.svc.AddEmployee(s.ctx, tc.input)
			s.True(apperror.Is(err, apperror.KindValidation))
			s.Equal(tc.message, err.Error())
		})
	}

	employees, err := s.svc.ListEmployees(s.ctx)
	s.Require().NoError(err)
	s.Empty(employees, "validation never mutates")
}

func (s *ServiceSuite) TestDuplicateEmployeeIsConflict() {
	s.addEmployee("E1", "a@x.io", "Ops")

	_, err := s.svc.AddEmployee(s.ctx, attendance.NewEmployee{EmployeeID: "E1", FullName: "Other", Email: "b@x.io", Department: "HR"})
	s.True(apperror.Is(err, apperror.KindConflict))

	summary, err := s.svc.GetEmployee(s.ctx, "E1")
	s.Require().NoError(err)
	s.Equal("a@x.io", summary.Email)
}

func (s *ServiceSuite) TestMarkAttendanceForUnknownEmployee() {
	_, err := s.svc.MarkAttendance(s.ctx, attendance.NewAttendance{EmployeeID: "ghost", Date: "2024-01-01", Status: attendance.StatusPresent})
	s.True(apperror.Is(err, apperror.KindNotFound))

	stats, err := s.svc.Dashboard(s.ctx)
	s.Require().NoError(err)
	s.Zero(stats.TotalAttendanceRecords)
}

func (s *ServiceSuite) TestMarkAttendanceValidation() {
	s.addEmployee("E1", "a@x.io", "Ops")

	_, err := s.svc.MarkAttendance(s.ctx, attendance.NewAttendance{EmployeeID: "E1", Date: "2024-02-30", Status: attendance.StatusPresent})
	s.True(apperror.Is(err, apperror.KindValidation))
	s.Equal("date must be a valid date in YYYY-MM-DD format", err.Error())

	_, err = s.svc.MarkAttendance(s.ctx, attendance.NewAttendance{EmployeeID: "E1", Date: "2024-02-01", Status: "Late"})
	s.True(apperror.Is(err, apperror.KindValidation))
	s.Equal("status must be one of: Present, Absent", err.Error())

	record := s.mark("E1", "2024-02-01", "present")
	s.Equal(attendance.StatusPresent, record.Status)
	s.NotEmpty(record.ID)
}

func (s *ServiceSuite) TestDuplicateDatePolicy() {
	s.addEmployee("E1", "a@x.io", "Ops")
	s.mark("E1", "2024-02-01", attendance.StatusPresent)

	_, err := s.svc.MarkAttendance(s.ctx, attendance.NewAttendance{EmployeeID: "E1", Date: "2024-02-01", Status: attendance.StatusAbsent})
	s.True(apperror.Is(err, apperror.KindConflict))

	allowing := attendance.NewService(s.store, attendance.WithDuplicatePolicy(attendance.DuplicatesAllow))
	_, err = allowing.MarkAttendance(s.ctx, attendance.NewAttendance{EmployeeID: "E1", Date: "2024-02-01", Status: attendance.StatusAbsent})
	s.Require().NoError(err)

	records, err := s.svc.ListAttendance(s.ctx, "E1", attendance.Filter{})
	s.Require().NoError(err)
	s.Len(records, 2)
}

func (s *ServiceSuite) TestDeleteAttendanceTwice() {
	s.addEmployee("E1", "a@x.io", "Ops")
	record := s.mark("E1", "2024-02-01", attendance.StatusPresent)

	s.expectChange(attendance.EntityAttendance, attendance.OpDeleted)
	s.Require().NoError(s.svc.DeleteAttendance(s.ctx, record.ID))

	err := s.svc.DeleteAttendance(s.ctx, record.ID)
	s.True(apperror.Is(err, apperror.KindNotFound))
}

func (s *ServiceSuite) TestCascadeLeavesNoOrphans() {
	s.addEmployee("E1", "a@x.io", "Ops")
	s.addEmployee("E2", "b@x.io", "Ops")
	first := s.mark("E1", "2024-02-01", attendance.StatusPresent)
	second := s.mark("E1", "2024-02-02", attendance.StatusAbsent)
	s.mark("E2", "2024-02-01", attendance.StatusPresent)

	s.expectChange(attendance.EntityEmployees, attendance.OpDeleted)
	removed, err := s.svc.DeleteEmployee(s.ctx, "E1")
	s.Require().NoError(err)
	s.Equal(2, removed)

	for _, id := range []string{first.ID, second.ID} {
		s.True(apperror.Is(s.svc.DeleteAttendance(s.ctx, id), apperror.KindNotFound))
	}
	_, err = s.svc.ListAttendance(s.ctx, "E1", attendance.Filter{})
	s.True(apperror.Is(err, apperror.KindNotFound))

	_, err = s.svc.DeleteEmployee(s.ctx, "E1")
	s.True(apperror.Is(err, apperror.KindNotFound))

	stats, err := s.svc.Dashboard(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, stats.TotalAttendanceRecords)
}

func (s *ServiceSuite) TestTotalsAreFreshAfterEveryMutation() {
	s.addEmployee("E1", "a@x.io", "Ops")
	present := s.mark("E1", "2024-02-01", attendance.StatusPresent)
	s.mark("E1", "2024-02-02", attendance.StatusAbsent)

	employees, err := s.svc.ListEmployees(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(employees, 1)
	s.Equal(attendance.Totals{TotalPresent: 1, TotalAbsent: 1, TotalRecords: 2}, employees[0].Totals)

	s.expectChange(attendance.EntityAttendance, attendance.OpDeleted)
	s.Require().NoError(s.svc.DeleteAttendance(s.ctx, present.ID))

	employees, err = s.svc.ListEmployees(s.ctx)
	s.Require().NoError(err)
	s.Equal(attendance.Totals{TotalAbsent: 1, TotalRecords: 1}, employees[0].Totals)
}

func (s *ServiceSuite) TestFilterConjunction() {
	s.addEmployee("E", "e@x.io", "Ops")
	s.mark("E", "2024-01-01", attendance.StatusPresent)
	s.mark("E", "2024-01-02", attendance.StatusAbsent)
	want := s.mark("E", "2024-01-03", attendance.StatusPresent)

	records, err := s.svc.ListAttendance(s.ctx, "E", attendance.Filter{FromDate: "2024-01-02", Status: attendance.StatusPresent})
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(want.ID, records[0].ID)

	_, err = s.svc.ListAttendance(s.ctx, "E", attendance.Filter{FromDate: "2024-01-03", ToDate: "2024-01-01"})
	s.True(apperror.Is(err, apperror.KindValidation))

	_, err = s.svc.ListAttendance(s.ctx, "E", attendance.Filter{Status: "Sick"})
	s.True(apperror.Is(err, apperror.KindValidation))

	empty, err := s.svc.ListAttendance(s.ctx, "E", attendance.Filter{FromDate: "2030-01-01"})
	s.Require().NoError(err)
	s.NotNil(empty)
	s.Empty(empty)
}

func (s *ServiceSuite) TestDashboardUsesConfiguredZone() {
	s.addEmployee("E1", "a@x.io", "Engineering")
	s.addEmployee("E2", "b@x.io", "Sales")
	s.mark("E1", "2024-03-01", attendance.StatusPresent)
	s.mark("E2", "2024-03-02", attendance.StatusAbsent)
	s.mark("E2", "2024-02-28", attendance.StatusPresent)

	stats, err := s.svc.Dashboard(s.ctx)
	s.Require().NoError(err)
	s.Equal("2024-03-01", stats.Date)
	s.Equal(1, stats.PresentToday)
	s.Equal(0, stats.AbsentToday)
	s.Equal(2, stats.TotalEmployees)
	s.Equal(3, stats.TotalAttendanceRecords)
	s.Equal([]string{"Engineering", "Sales"}, stats.Departments)

	kolkata, err := time.LoadLocation("Asia/Kolkata")
	s.Require().NoError(err)
	east := attendance.NewService(s.store,
		attendance.WithClock(func() time.Time { return fixedNow }),
		attendance.WithLocation(kolkata),
	)
	stats, err = east.Dashboard(s.ctx)
	s.Require().NoError(err)
	s.Equal("2024-03-02", stats.Date)
	s.Equal(0, stats.PresentToday)
	s.Equal(1, stats.AbsentToday)
}

func (s *ServiceSuite) TestPublishFailureDoesNotFailMutation() {
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("queue down"))

	_, err := s.svc.AddEmployee(s.ctx, attendance.NewEmployee{EmployeeID: "E1", FullName: "A", Email: "a@x.io", Department: "Ops"})
	s.Require().NoError(err)

	_, err = s.svc.GetEmployee(s.ctx, "E1")
	s.NoError(err)
}

func (s *ServiceSuite) TestStalledPublisherDoesNotHoldMutation() {
	svc := attendance.NewService(s.store,
		attendance.WithPublisher(s.publisher),
		attendance.WithPublishTimeout(20*time.Millisecond),
	)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ attendance.Change) error {
			<-ctx.Done()
			return ctx.Err()
		})

	done := make(chan error, 1)
	go func() {
		_, err := svc.AddEmployee(s.ctx, attendance.NewEmployee{EmployeeID: "E1", FullName: "A", Email: "a@x.io", Department: "Ops"})
		done <- err
	}()

	select {
	case err := <-done:
		s.Require().NoError(err)
	case <-time.After(2 * time.Second):
		s.FailNow("mutation blocked on the change feed")
	}
	_, err := svc.GetEmployee(s.ctx, "E1")
	s.NoError(err)
}

func (s *ServiceSuite) TestStoreTimeoutIsRetryable() {
	svc := attendance.NewService(slowStore{Store: s.store}, attendance.WithStoreTimeout(10*time.Millisecond))

	_, err := svc.ListEmployees(s.ctx)
	s.True(apperror.Is(err, apperror.KindStoreUnavailable))
	s.True(apperror.Retryable(err))
}

// slowStore blocks snapshots until the caller gives up.
type slowStore struct {
	attendance.Store
}

func (slowStore) Snapshot(ctx context.Context) (attendance.Snapshot, error) {
	<-ctx.Done()
	return attendance.Snapshot{}, ctx.Err()
}

func TestFullQueueWithoutConsumer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	svc := attendance.NewService(attendance.NewInMemory(),
		attendance.WithPublisher(revision.NewPublisher(queue.NewInMemory(2))),
		attendance.WithPublishTimeout(50*time.Millisecond),
	)

	done := make(chan error, 1)
	go func() {
		for _, id := range []string{"E1", "E2", "E3"} {
			if _, err := svc.AddEmployee(ctx, attendance.NewEmployee{EmployeeID: id, FullName: "A", Email: id + "@x.io", Department: "Ops"}); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("third add still blocked on a full queue")
	}

	employees, err := svc.ListEmployees(context.Background())
	require.NoError(t, err)
	assert.Len(t, employees, 3)
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	svc := attendance.NewService(attendance.NewInMemory())

	_, err := svc.AddEmployee(ctx, attendance.NewEmployee{EmployeeID: "EMP001", FullName: "Asha Rao", Email: "asha@co.com", Department: "Engineering"})
	if err != nil {
		t.Fatalf("add employee: %v", err)
	}
	first, err := svc.MarkAttendance(ctx, attendance.NewAttendance{EmployeeID: "EMP001", Date: "2024-03-01", Status: attendance.StatusPresent})
	if err != nil {
		t.Fatalf("mark present: %v", err)
	}
	second, err := svc.MarkAttendance(ctx, attendance.NewAttendance{EmployeeID: "EMP001", Date: "2024-03-02", Status: attendance.StatusAbsent})
	if err != nil {
		t.Fatalf("mark absent: %v", err)
	}

	employees, err := svc.ListEmployees(ctx)
	if err != nil || len(employees) != 1 {
		t.Fatalf("list employees: %v %v", employees, err)
	}
	if employees[0].TotalPresent != 1 || employees[0].TotalAbsent != 1 {
		t.Fatalf("unexpected totals %+v", employees[0].Totals)
	}

	if _, err := svc.DeleteEmployee(ctx, "EMP001"); err != nil {
		t.Fatalf("delete employee: %v", err)
	}
	employees, err = svc.ListEmployees(ctx)
	if err != nil || len(employees) != 0 {
		t.Fatalf("expected no employees, got %v %v", employees, err)
	}
	for _, id := range []string{first.ID, second.ID} {
		if err := svc.DeleteAttendance(ctx, id); !apperror.Is(err, apperror.KindNotFound) {
			t.Fatalf("expected not_found for %s, got %v", id, err)
		}
	}
}
