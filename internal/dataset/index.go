package dataset

// EnrollmentIndex maps an enrollment id to its attendance and assessment records.
// It is built once over the complete sampler output.
type EnrollmentIndex struct {
	attendance  map[int][]AttendanceRecord
	assessments map[int][]AssessmentRecord
}

// BuildIndex groups records by enrollment id, preserving record order.
func BuildIndex(attendance []AttendanceRecord, assessments []AssessmentRecord) *EnrollmentIndex {
	ix := &EnrollmentIndex{
		attendance:  make(map[int][]AttendanceRecord),
		assessments: make(map[int][]AssessmentRecord),
	}
	for _, r := range attendance {
		ix.attendance[r.EnrollID] = append(ix.attendance[r.EnrollID], r)
	}
	for _, r := range assessments {
		ix.assessments[r.EnrollID] = append(ix.assessments[r.EnrollID], r)
	}
	return ix
}

// Attendance returns the attendance records of an enrollment.
func (ix *EnrollmentIndex) Attendance(enrollID int) []AttendanceRecord {
	return ix.attendance[enrollID]
}

// Assessments returns the assessment records of an enrollment.
func (ix *EnrollmentIndex) Assessments(enrollID int) []AssessmentRecord {
	return ix.assessments[enrollID]
}

// MeanPresence is the fraction of sessions attended, or 0 with no records.
func (ix *EnrollmentIndex) MeanPresence(enrollID int) float64 {
	recs := ix.attendance[enrollID]
	if len(recs) == 0 {
		return 0
	}
	present := 0
	for _, r := range recs {
		if r.Present {
			present++
		}
	}
	return float64(present) / float64(len(recs))
}

// MeanScore is the mean assessment score, or 0 with no records.
func (ix *EnrollmentIndex) MeanScore(enrollID int) float64 {
	recs := ix.assessments[enrollID]
	if len(recs) == 0 {
		return 0
	}
	var sum float64
	for _, r := range recs {
		sum += r.Score
	}
	return sum / float64(len(recs))
}
