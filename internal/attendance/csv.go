package attendance

import (
	"encoding/csv"
	"io"

	"artledger/internal/roster"
)

// notMarkedLabel is the literal used for students absent from the day's
// mapping, kept identical to the admin UI's export.
const notMarkedLabel = "Not Marked"

// ExportFilename returns the download name for a date's export.
func ExportFilename(date string) string {
	return "attendance_" + date + ".csv"
}

// WriteCSV writes one row per (already filtered) student with the day's
// status, falling back to "Not Marked" for unmarked students.
func WriteCSV(w io.Writer, students []roster.Student, marks DayMarks) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Roll No", "Student Name", "Class", "Status"}); err != nil {
		return err
	}
	for _, s := range students {
		status := notMarkedLabel
		if st, ok := marks[s.ID]; ok {
			status = string(st)
		}
		if err := cw.Write([]string{s.RollNumber, s.Name, s.EnrolledClass, status}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
