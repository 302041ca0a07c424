package dataset

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		field  string
	}{
		{"defaults are valid", func(*Params) {}, ""},
		{"zero students", func(p *Params) { p.NStudents = 0 }, "n_students"},
		{"negative students", func(p *Params) { p.NStudents = -3 }, "n_students"},
		{"zero courses", func(p *Params) { p.NCourses = 0 }, "n_courses"},
		{"negative sessions", func(p *Params) { p.SessionsPerCourse = -1 }, "sessions_per_course"},
		{"zero sessions allowed", func(p *Params) { p.SessionsPerCourse = 0 }, ""},
		{"negative per type", func(p *Params) { p.AssessmentsPerType = -1 }, "assessments_per_type"},
		{"no assessment types", func(p *Params) { p.AssessmentTypes = nil }, "assessment_types"},
		{"no semesters", func(p *Params) { p.Semesters = []string{} }, "semesters"},
		{"min below one", func(p *Params) { p.MinCoursesPerStudent = 0 }, "min_courses_per_student"},
		{"max below min", func(p *Params) { p.MaxCoursesPerStudent = 3 }, "max_courses_per_student"},
		{"max above course count", func(p *Params) { p.NCourses = 5 }, "max_courses_per_student"},
		{"missing reference date", func(p *Params) { p.AsOf = time.Time{} }, "as_of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)

			err := p.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestParams_AssessmentsPerEnrollment(t *testing.T) {
	assert.Equal(t, 9, DefaultParams().AssessmentsPerEnrollment())

	p := DefaultParams()
	p.AssessmentTypes = []string{"quiz"}
	p.AssessmentsPerType = 5
	assert.Equal(t, 5, p.AssessmentsPerEnrollment())
}

func TestSampleEnrollments_EmptyCourseSet(t *testing.T) {
	p := DefaultParams()
	students := []Student{{ID: 1, EntryGPA: 7}}

	_, err := SampleEnrollments(NewSource(1), p, students, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
