package dataset

import "time"

// Table names, in generation order.
const (
	TableStudents    = "students"
	TableCourses     = "courses"
	TableEnrollments = "enrollments"
	TableAttendance  = "attendance"
	TableAssessments = "assessments"
	TableFinals      = "finals"
	TableFeedback    = "feedback"
)

// Tables lists every table in generation order.
var Tables = []string{
	TableStudents,
	TableCourses,
	TableEnrollments,
	TableAttendance,
	TableAssessments,
	TableFinals,
	TableFeedback,
}

// Student is a generated student. Immutable after generation.
type Student struct {
	ID        int
	RegNo     string
	Name      string
	DOB       time.Time
	Gender    string
	EntryGPA  float64
	SocioEcon string
}

// Course is a generated course.
type Course struct {
	ID         int
	Code       string
	Title      string
	Credits    int
	Instructor string
}

// Enrollment is one student's registration in one course for one term.
type Enrollment struct {
	ID        int
	StudentID int
	CourseID  int
	Semester  string
}

// AttendanceRecord is a single session for an enrollment.
type AttendanceRecord struct {
	ID          int
	EnrollID    int
	SessionDate time.Time
	Present     bool
}

// AssessmentRecord is a single graded event for an enrollment.
type AssessmentRecord struct {
	ID       int
	EnrollID int
	Type     string
	Score    float64
	OutOf    float64
	Date     time.Time
}

// FinalOutcome holds the derived metrics for an enrollment.
type FinalOutcome struct {
	ID           int
	EnrollID     int
	FinalScore   float64
	Grade        string
	AtRisk       bool
	Intervention bool
}

// FeedbackNote is the narrative text for an enrollment.
type FeedbackNote struct {
	ID       int
	EnrollID int
	Text     string
}

// Dataset is the complete output of one generation run.
type Dataset struct {
	Params      Params
	Students    []Student
	Courses     []Course
	Enrollments []Enrollment
	Attendance  []AttendanceRecord
	Assessments []AssessmentRecord
	Finals      []FinalOutcome
	Feedback    []FeedbackNote
}

// Counts returns the row count of every table keyed by table name.
func (d *Dataset) Counts() map[string]int {
	return map[string]int{
		TableStudents:    len(d.Students),
		TableCourses:     len(d.Courses),
		TableEnrollments: len(d.Enrollments),
		TableAttendance:  len(d.Attendance),
		TableAssessments: len(d.Assessments),
		TableFinals:      len(d.Finals),
		TableFeedback:    len(d.Feedback),
	}
}
