// Package export writes a generated dataset to a directory of CSV files with a manifest.
package export

import (
	"bufio"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gradesim/gradesim/internal/dataset"
)

// Files maps each table to its CSV file name.
var Files = map[string]string{
	dataset.TableStudents:    "students.csv",
	dataset.TableCourses:     "courses.csv",
	dataset.TableEnrollments: "enroll.csv",
	dataset.TableAttendance:  "attendance.csv",
	dataset.TableAssessments: "assess.csv",
	dataset.TableFinals:      "finals.csv",
	dataset.TableFeedback:    "feedback.csv",
}

// Headers holds the fixed column order of each table.
var Headers = map[string][]string{
	dataset.TableStudents:    {"student_id", "reg_no", "name", "dob", "gender", "entry_gpa", "socio_econ"},
	dataset.TableCourses:     {"course_id", "code", "title", "credits", "instructor"},
	dataset.TableEnrollments: {"enroll_id", "student_id", "course_id", "semester"},
	dataset.TableAttendance:  {"att_id", "enroll_id", "session_date", "present"},
	dataset.TableAssessments: {"assess_id", "enroll_id", "atype", "score", "out_of", "date"},
	dataset.TableFinals:      {"final_id", "enroll_id", "final_score", "grade", "at_risk", "intervention"},
	dataset.TableFeedback:    {"feed_id", "enroll_id", "text_feedback"},
}

// WriteDir writes every table of ds into dir, then the manifest.
// The same dataset always produces byte-identical files.
func WriteDir(dir string, ds *dataset.Dataset) (*Manifest, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	m := newManifest(ds.Params)
	for _, table := range dataset.Tables {
		rows := tableRows(ds, table)
		sum, err := writeTable(filepath.Join(dir, Files[table]), Headers[table], rows)
		if err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", table, err)
		}
		m.Tables = append(m.Tables, TableEntry{
			Name:   table,
			File:   Files[table],
			Rows:   len(rows),
			SHA256: sum,
		})
	}

	if err := m.Write(dir); err != nil {
		return nil, err
	}
	return m, nil
}

func writeTable(path string, header []string, rows [][]string) (string, error) {
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	buf := bufio.NewWriter(io.MultiWriter(f, h))
	w := csv.NewWriter(buf)
	if err := w.Write(header); err != nil {
		return "", err
	}
	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	if err := buf.Flush(); err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func tableRows(ds *dataset.Dataset, table string) [][]string {
	var rows [][]string
	switch table {
	case dataset.TableStudents:
		rows = make([][]string, 0, len(ds.Students))
		for _, s := range ds.Students {
			rows = append(rows, []string{
				itoa(s.ID), s.RegNo, s.Name, s.DOB.Format(dataset.DateLayout), s.Gender, ftoa(s.EntryGPA), s.SocioEcon,
			})
		}
	case dataset.TableCourses:
		rows = make([][]string, 0, len(ds.Courses))
		for _, c := range ds.Courses {
			rows = append(rows, []string{itoa(c.ID), c.Code, c.Title, itoa(c.Credits), c.Instructor})
		}
	case dataset.TableEnrollments:
		rows = make([][]string, 0, len(ds.Enrollments))
		for _, e := range ds.Enrollments {
			rows = append(rows, []string{itoa(e.ID), itoa(e.StudentID), itoa(e.CourseID), e.Semester})
		}
	case dataset.TableAttendance:
		rows = make([][]string, 0, len(ds.Attendance))
		for _, a := range ds.Attendance {
			rows = append(rows, []string{itoa(a.ID), itoa(a.EnrollID), a.SessionDate.Format(dataset.DateLayout), btoa(a.Present)})
		}
	case dataset.TableAssessments:
		rows = make([][]string, 0, len(ds.Assessments))
		for _, a := range ds.Assessments {
			rows = append(rows, []string{
				itoa(a.ID), itoa(a.EnrollID), a.Type, ftoa(a.Score), ftoa(a.OutOf), a.Date.Format(dataset.DateLayout),
			})
		}
	case dataset.TableFinals:
		rows = make([][]string, 0, len(ds.Finals))
		for _, f := range ds.Finals {
			rows = append(rows, []string{
				itoa(f.ID), itoa(f.EnrollID), ftoa(f.FinalScore), f.Grade, btoa(f.AtRisk), btoa(f.Intervention),
			})
		}
	case dataset.TableFeedback:
		rows = make([][]string, 0, len(ds.Feedback))
		for _, f := range ds.Feedback {
			rows = append(rows, []string{itoa(f.ID), itoa(f.EnrollID), f.Text})
		}
	}
	return rows
}

func itoa(v int) string {
	return strconv.Itoa(v)
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func btoa(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
