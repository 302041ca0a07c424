package dataset

import (
	"fmt"
	"math"
)

const (
	attendanceWindowDays = 180
	assessmentWindowDays = 120

	assessmentOutOf  = 100.0
	assessmentSD     = 10.0
	baseScoreMean    = 60.0
	baseScoreSD      = 12.0
	baseScoreFloor   = 30
	gpaScoreDivisor  = 8.0
	presenceBase     = 0.8
	presenceGPASlope = 0.25
)

// PresenceProbability is the per-session attendance probability for a student.
// It lies in [0.65, 0.7875] for GPAs in the clipped range.
func PresenceProbability(gpa float64) float64 {
	return presenceBase - presenceGPASlope*(1-gpa/10)
}

// SampleAttendance draws SessionsPerCourse records per enrollment, in enrollment order.
func SampleAttendance(src *Source, p Params, enrollments []Enrollment, students []Student) ([]AttendanceRecord, error) {
	byID := studentsByID(students)
	records := make([]AttendanceRecord, 0, len(enrollments)*p.SessionsPerCourse)
	next := 1
	for _, e := range enrollments {
		s, ok := byID[e.StudentID]
		if !ok {
			return nil, fmt.Errorf("enrollment %d references unknown student %d", e.ID, e.StudentID)
		}
		prob := PresenceProbability(s.EntryGPA)
		for range p.SessionsPerCourse {
			present := src.Bernoulli(prob)
			records = append(records, AttendanceRecord{
				ID:          next,
				EnrollID:    e.ID,
				SessionDate: src.DayWithin(p.AsOf, attendanceWindowDays),
				Present:     present,
			})
			next++
		}
	}
	return records, nil
}

// SampleAssessments draws AssessmentsPerType records of each assessment type per enrollment.
// A base score max(30, trunc(Normal(60, 12))) is drawn once per enrollment and every
// score is clip(Normal(base*gpa/8, 10), 0, 100).
func SampleAssessments(src *Source, p Params, enrollments []Enrollment, students []Student) ([]AssessmentRecord, error) {
	byID := studentsByID(students)
	records := make([]AssessmentRecord, 0, len(enrollments)*p.AssessmentsPerEnrollment())
	next := 1
	for _, e := range enrollments {
		s, ok := byID[e.StudentID]
		if !ok {
			return nil, fmt.Errorf("enrollment %d references unknown student %d", e.ID, e.StudentID)
		}
		base := max(baseScoreFloor, int(math.Trunc(src.Normal(baseScoreMean, baseScoreSD))))
		mean := float64(base) * (s.EntryGPA / gpaScoreDivisor)
		for _, atype := range p.AssessmentTypes {
			for range p.AssessmentsPerType {
				score := round2(clip(src.Normal(mean, assessmentSD), 0, 100))
				records = append(records, AssessmentRecord{
					ID:       next,
					EnrollID: e.ID,
					Type:     atype,
					Score:    score,
					OutOf:    assessmentOutOf,
					Date:     src.DayWithin(p.AsOf, assessmentWindowDays),
				})
				next++
			}
		}
	}
	return records, nil
}
