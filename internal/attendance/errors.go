package attendance

import "hrms/internal/apperror"

func employeeNotFound(employeeID string) error {
	return apperror.Newf(apperror.KindNotFound, "Employee '%s' not found.", employeeID)
}

func attendanceNotFound(id string) error {
	return apperror.Newf(apperror.KindNotFound, "Attendance record '%s' not found.", id)
}

func conflictEmployeeID(employeeID string) error {
	return apperror.Newf(apperror.KindConflict, "Employee with ID '%s' already exists.", employeeID)
}

func conflictEmail(email string) error {
	return apperror.Newf(apperror.KindConflict, "Employee with email '%s' already exists.", email)
}

func duplicateDate(employeeID, date string) error {
	return apperror.Newf(apperror.KindConflict, "Attendance for employee '%s' on %s already recorded.", employeeID, date)
}
