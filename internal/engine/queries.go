package engine

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
)

// FeatureRow is one row of the student_features view.
type FeatureRow struct {
	StudentID     int     `json:"student_id"`
	Name          string  `json:"name"`
	EntryGPA      float64 `json:"entry_gpa"`
	SocioEcon     string  `json:"socio_econ"`
	EnrollID      int     `json:"enroll_id"`
	CourseID      int     `json:"course_id"`
	CourseCode    string  `json:"course_code"`
	Semester      string  `json:"semester"`
	AttendancePct float64 `json:"attendance_pct"`
	AvgAssessment float64 `json:"avg_assessment"`
	FinalScore    float64 `json:"final_score"`
	Grade         string  `json:"grade"`
	AtRisk        bool    `json:"at_risk"`
	Intervention  bool    `json:"intervention"`
}

// CourseStat is the per-course aggregate.
type CourseStat struct {
	CourseID      int     `json:"course_id"`
	Code          string  `json:"code"`
	Title         string  `json:"title"`
	Enrollments   int     `json:"enrollments"`
	AvgFinalScore float64 `json:"avg_final_score"`
	RiskPct       float64 `json:"risk_pct"`
}

// TrainingRow is a classifier example: the three features and the label.
type TrainingRow struct {
	EnrollID      int
	EntryGPA      float64
	AttendancePct float64
	AvgAssessment float64
	AtRisk        bool
}

// Features returns the model inputs in training order.
func (r TrainingRow) Features() []float64 {
	return []float64{r.EntryGPA, r.AttendancePct, r.AvgAssessment}
}

// FeatureNames are the classifier input columns, in order.
var FeatureNames = []string{"entry_gpa", "attendance_pct", "avg_assessment"}

const featureColumns = `student_id, name, entry_gpa, socio_econ, enroll_id, course_id, course_code, semester,
	attendance_pct, avg_assessment, final_score, grade, at_risk, intervention`

// StudentFeatures returns up to limit rows of student_features ordered by enrollment.
func (e *Engine) StudentFeatures(ctx context.Context, limit int) ([]FeatureRow, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	q := "SELECT " + featureColumns + " FROM student_features ORDER BY enroll_id LIMIT $1"
	return e.queryFeatures(ctx, "student features", q, limit)
}

// FeatureRows returns the student_features rows of the given enrollments.
// An empty id list returns every row.
func (e *Engine) FeatureRows(ctx context.Context, enrollIDs []int) ([]FeatureRow, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	q := "SELECT " + featureColumns + " FROM student_features"
	args := make([]any, 0, len(enrollIDs))
	if len(enrollIDs) > 0 {
		d := e.db.Dialect()
		ph := make([]string, len(enrollIDs))
		for i, id := range enrollIDs {
			ph[i] = d.Placeholder(i + 1)
			args = append(args, id)
		}
		q += " WHERE enroll_id IN (" + strings.Join(ph, ", ") + ")"
	}
	q += " ORDER BY enroll_id"
	return e.queryFeatures(ctx, "feature rows", q, args...)
}

func (e *Engine) queryFeatures(ctx context.Context, op, q string, args ...any) ([]FeatureRow, error) {
	rows, err := e.db.Query(ctx, q, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer func() { _ = rows.Close() }()

	out := []FeatureRow{}
	for rows.Next() {
		var (
			r         FeatureRow
			socioEcon sql.NullString
			semester  sql.NullString
		)
		if err := rows.Scan(&r.StudentID, &r.Name, &r.EntryGPA, &socioEcon, &r.EnrollID, &r.CourseID,
			&r.CourseCode, &semester, &r.AttendancePct, &r.AvgAssessment, &r.FinalScore, &r.Grade,
			&r.AtRisk, &r.Intervention); err != nil {
			return nil, unavailable(op, err)
		}
		r.SocioEcon = socioEcon.String
		r.Semester = semester.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return out, nil
}

// TrainingRows returns every enrollment's features and at_risk label.
func (e *Engine) TrainingRows(ctx context.Context) ([]TrainingRow, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	rows, err := e.db.Query(ctx,
		`SELECT enroll_id, entry_gpa, attendance_pct, avg_assessment, at_risk
		 FROM student_features ORDER BY enroll_id`)
	if err != nil {
		return nil, unavailable("training rows", err)
	}
	defer func() { _ = rows.Close() }()

	var out []TrainingRow
	for rows.Next() {
		var r TrainingRow
		if err := rows.Scan(&r.EnrollID, &r.EntryGPA, &r.AttendancePct, &r.AvgAssessment, &r.AtRisk); err != nil {
			return nil, unavailable("training rows", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("training rows", err)
	}
	return out, nil
}

// CourseStats returns per-course average final score and at-risk percentage,
// both rounded to 2 dp, ordered by course code.
func (e *Engine) CourseStats(ctx context.Context) ([]CourseStat, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	rows, err := e.db.Query(ctx, `
		SELECT c.course_id, c.code, c.title, COUNT(*) AS enrollments,
		       CAST(AVG(f.final_score) AS FLOAT8) AS avg_final_score,
		       CAST(100.0 * SUM(f.at_risk) / COUNT(*) AS FLOAT8) AS risk_pct
		FROM courses c
		JOIN enroll e ON c.course_id = e.course_id
		JOIN finals f ON e.enroll_id = f.enroll_id
		GROUP BY c.course_id, c.code, c.title
		ORDER BY c.code`)
	if err != nil {
		return nil, unavailable("course stats", err)
	}
	defer func() { _ = rows.Close() }()

	out := []CourseStat{}
	for rows.Next() {
		var (
			s     CourseStat
			title sql.NullString
		)
		if err := rows.Scan(&s.CourseID, &s.Code, &title, &s.Enrollments, &s.AvgFinalScore, &s.RiskPct); err != nil {
			return nil, unavailable("course stats", err)
		}
		s.Title = title.String
		s.AvgFinalScore = round2(s.AvgFinalScore)
		s.RiskPct = round2(s.RiskPct)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("course stats", err)
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// enrollmentExists reports whether an enrollment id is present.
func (e *Engine) enrollmentExists(ctx context.Context, enrollID int) (bool, error) {
	var n int64
	err := e.db.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM enroll WHERE enroll_id = $1", enrollID).Scan(&n)
	if err != nil {
		return false, unavailable("lookup enrollment", err)
	}
	return n > 0, nil
}

// errEnrollmentNotFound wraps ErrNotFound with the id.
func errEnrollmentNotFound(id int) error {
	return fmt.Errorf("enrollment %d: %w", id, ErrNotFound)
}
