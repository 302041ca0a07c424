package dataset

import "fmt"

const (
	finalNoiseSD       = 5.0
	riskScoreThreshold = 50.0
	riskPresenceFloor  = 0.6
	riskGate           = 0.9
	interventionGate   = 0.6
)

// Grade maps a final score to a letter grade.
func Grade(score float64) string {
	switch {
	case score >= 85:
		return "A"
	case score >= 70:
		return "B"
	case score >= 55:
		return "C"
	case score >= 40:
		return "D"
	default:
		return "F"
	}
}

// FinalScore combines the enrollment means with the GPA bonus and a noise term, clipped to [0, 100].
func FinalScore(meanScore, meanPresence, gpa, noise float64) float64 {
	return clip(0.5*meanScore+40*meanPresence+2*gpa+noise, 0, 100)
}

// Aggregate derives one FinalOutcome per enrollment from the indexed records.
//
// Per enrollment the draws are: the noise normal, then the risk uniform only when
// the score or presence threshold is hit, then the intervention uniform only when
// the enrollment is at risk.
func Aggregate(src *Source, enrollments []Enrollment, students []Student, ix *EnrollmentIndex) ([]FinalOutcome, error) {
	byID := studentsByID(students)
	finals := make([]FinalOutcome, 0, len(enrollments))
	for i, e := range enrollments {
		s, ok := byID[e.StudentID]
		if !ok {
			return nil, fmt.Errorf("enrollment %d references unknown student %d", e.ID, e.StudentID)
		}
		presence := ix.MeanPresence(e.ID)
		score := round2(FinalScore(ix.MeanScore(e.ID), presence, s.EntryGPA, src.Normal(0, finalNoiseSD)))

		atRisk := false
		if score < riskScoreThreshold || presence < riskPresenceFloor {
			atRisk = src.Float64() < riskGate
		}
		intervention := false
		if atRisk {
			intervention = src.Float64() < interventionGate
		}

		finals = append(finals, FinalOutcome{
			ID:           i + 1,
			EnrollID:     e.ID,
			FinalScore:   score,
			Grade:        Grade(score),
			AtRisk:       atRisk,
			Intervention: intervention,
		})
	}
	return finals, nil
}
