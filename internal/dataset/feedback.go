package dataset

import "fmt"

const fillerWords = 6

// FeedbackTemplate returns the bracket sentence for a final score.
func FeedbackTemplate(name string, score float64) string {
	switch {
	case score > 80:
		return fmt.Sprintf("%s demonstrated strong understanding; recommend advanced readings.", name)
	case score > 60:
		return fmt.Sprintf("%s is performing satisfactorily; focus on weaker topics in upcoming labs.", name)
	case score > 45:
		return fmt.Sprintf("%s needs attention; suggest tutoring and attendance improvement.", name)
	default:
		return fmt.Sprintf("%s is at high risk; immediate intervention recommended.", name)
	}
}

// GenerateFeedback writes one note per final outcome: the bracket sentence, a space,
// then a six-word filler sentence.
func GenerateFeedback(src *Source, finals []FinalOutcome, enrollments []Enrollment, students []Student) ([]FeedbackNote, error) {
	byID := studentsByID(students)
	studentOf := make(map[int]int, len(enrollments))
	for _, e := range enrollments {
		studentOf[e.ID] = e.StudentID
	}

	notes := make([]FeedbackNote, 0, len(finals))
	for i, f := range finals {
		sid, ok := studentOf[f.EnrollID]
		if !ok {
			return nil, fmt.Errorf("final %d references unknown enrollment %d", f.ID, f.EnrollID)
		}
		s, ok := byID[sid]
		if !ok {
			return nil, fmt.Errorf("enrollment %d references unknown student %d", f.EnrollID, sid)
		}
		notes = append(notes, FeedbackNote{
			ID:       i + 1,
			EnrollID: f.EnrollID,
			Text:     FeedbackTemplate(s.Name, f.FinalScore) + " " + src.Sentence(fillerWords),
		})
	}
	return notes, nil
}
