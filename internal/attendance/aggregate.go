package attendance

import "sort"

// TotalsFor counts records by status. It never consults a cached counter, so
// the result always matches the records passed in.
func TotalsFor(records []AttendanceRecord) Totals {
	var totals Totals
	for _, record := range records {
		switch record.Status {
		case StatusPresent:
			totals.TotalPresent++
		case StatusAbsent:
			totals.TotalAbsent++
		}
		totals.TotalRecords++
	}
	return totals
}

// Summaries attaches totals to every employee, preserving employee order.
// Records whose owner is not in employees are ignored.
func Summaries(employees []Employee, records []AttendanceRecord) []EmployeeSummary {
	byEmployee := make(map[string][]AttendanceRecord, len(employees))
	for _, record := range records {
		byEmployee[record.EmployeeID] = append(byEmployee[record.EmployeeID], record)
	}

	result := make([]EmployeeSummary, 0, len(employees))
	for _, employee := range employees {
		result = append(result, EmployeeSummary{
			Employee: employee,
			Totals:   TotalsFor(byEmployee[employee.EmployeeID]),
		})
	}
	return result
}

// Dashboard computes the dashboard aggregates for the given day. Departments
// are deduplicated and sorted so repeated calls render identically.
func Dashboard(snapshot Snapshot, today string) DashboardStats {
	stats := DashboardStats{
		Date:                   today,
		TotalEmployees:         len(snapshot.Employees),
		TotalAttendanceRecords: len(snapshot.Records),
		Departments:            []string{},
	}

	for _, record := range snapshot.Records {
		if record.Date != today {
			continue
		}
		switch record.Status {
		case StatusPresent:
			stats.PresentToday++
		case StatusAbsent:
			stats.AbsentToday++
		}
	}

	seen := make(map[string]struct{}, len(snapshot.Employees))
	for _, employee := range snapshot.Employees {
		if _, ok := seen[employee.Department]; ok {
			continue
		}
		seen[employee.Department] = struct{}{}
		stats.Departments = append(stats.Departments, employee.Department)
	}
	sort.Strings(stats.Departments)

	return stats
}
