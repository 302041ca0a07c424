package dataset

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is wrapped by every ConfigError.
var ErrInvalidConfig = errors.New("invalid generation config")

// ConfigError reports a malformed generation parameter.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid generation config: %s: %s", e.Field, e.Reason)
}

// Unwrap allows errors.Is(err, ErrInvalidConfig).
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// DateLayout is the ISO date layout used for every date column.
const DateLayout = "2006-01-02"

// DefaultAsOf is the reference date that all generated dates are relative to.
var DefaultAsOf = time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)

// Params controls a generation run.
type Params struct {
	Seed                 uint64    `yaml:"seed" json:"seed"`
	NStudents            int       `yaml:"n_students" json:"n_students"`
	NCourses             int       `yaml:"n_courses" json:"n_courses"`
	SessionsPerCourse    int       `yaml:"sessions_per_course" json:"sessions_per_course"`
	AssessmentTypes      []string  `yaml:"assessment_types" json:"assessment_types"`
	AssessmentsPerType   int       `yaml:"assessments_per_type" json:"assessments_per_type"`
	MinCoursesPerStudent int       `yaml:"min_courses_per_student" json:"min_courses_per_student"`
	MaxCoursesPerStudent int       `yaml:"max_courses_per_student" json:"max_courses_per_student"`
	Semesters            []string  `yaml:"semesters" json:"semesters"`
	AsOf                 time.Time `yaml:"as_of" json:"as_of"`
}

// DefaultParams returns the standard cohort: 1200 students, 8 courses, seed 42.
func DefaultParams() Params {
	return Params{
		Seed:                 42,
		NStudents:            1200,
		NCourses:             8,
		SessionsPerCourse:    30,
		AssessmentTypes:      []string{"quiz", "midterm", "lab"},
		AssessmentsPerType:   3,
		MinCoursesPerStudent: 4,
		MaxCoursesPerStudent: 6,
		Semesters:            []string{"2024-1", "2024-2", "2025-1"},
		AsOf:                 DefaultAsOf,
	}
}

// Validate checks the parameters and returns a *ConfigError for the first problem found.
func (p Params) Validate() error {
	switch {
	case p.NStudents <= 0:
		return &ConfigError{Field: "n_students", Reason: fmt.Sprintf("must be positive, got %d", p.NStudents)}
	case p.NCourses <= 0:
		return &ConfigError{Field: "n_courses", Reason: fmt.Sprintf("must be positive, got %d", p.NCourses)}
	case p.SessionsPerCourse < 0:
		return &ConfigError{Field: "sessions_per_course", Reason: "must not be negative"}
	case p.AssessmentsPerType < 0:
		return &ConfigError{Field: "assessments_per_type", Reason: "must not be negative"}
	case len(p.AssessmentTypes) == 0:
		return &ConfigError{Field: "assessment_types", Reason: "must not be empty"}
	case len(p.Semesters) == 0:
		return &ConfigError{Field: "semesters", Reason: "must not be empty"}
	case p.MinCoursesPerStudent < 1:
		return &ConfigError{Field: "min_courses_per_student", Reason: "must be at least 1"}
	case p.MaxCoursesPerStudent < p.MinCoursesPerStudent:
		return &ConfigError{Field: "max_courses_per_student", Reason: "must not be less than min_courses_per_student"}
	case p.MaxCoursesPerStudent > p.NCourses:
		return &ConfigError{
			Field:  "max_courses_per_student",
			Reason: fmt.Sprintf("%d exceeds the %d available courses", p.MaxCoursesPerStudent, p.NCourses),
		}
	case p.AsOf.IsZero():
		return &ConfigError{Field: "as_of", Reason: "must be set"}
	}
	return nil
}

// AssessmentsPerEnrollment is the number of assessment records each enrollment receives.
func (p Params) AssessmentsPerEnrollment() int {
	return len(p.AssessmentTypes) * p.AssessmentsPerType
}
