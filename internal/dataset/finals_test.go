package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrade(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, "A"},
		{85, "A"},
		{84.99, "B"},
		{70, "B"},
		{69.99, "C"},
		{55, "C"},
		{54.99, "D"},
		{40, "D"},
		{39.99, "F"},
		{0, "F"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Grade(tt.score), "score %v", tt.score)
	}
}

func TestFinalScore(t *testing.T) {
	assert.InDelta(t, 0.5*70+40*0.8+2*7, FinalScore(70, 0.8, 7, 0), 1e-9)
	assert.Equal(t, 100.0, FinalScore(100, 1, 9.5, 30))
	assert.Equal(t, 0.0, FinalScore(0, 0, 4, -30))
}

func TestPresenceProbability(t *testing.T) {
	assert.InDelta(t, 0.65, PresenceProbability(4.0), 1e-9)
	assert.InDelta(t, 0.7875, PresenceProbability(9.5), 1e-9)
	assert.Less(t, PresenceProbability(5), PresenceProbability(8))
}

func TestEnrollmentIndex(t *testing.T) {
	att := []AttendanceRecord{
		{ID: 1, EnrollID: 1, Present: true},
		{ID: 2, EnrollID: 1, Present: false},
		{ID: 3, EnrollID: 1, Present: true},
		{ID: 4, EnrollID: 1, Present: true},
		{ID: 5, EnrollID: 2, Present: false},
	}
	ass := []AssessmentRecord{
		{ID: 1, EnrollID: 1, Score: 60},
		{ID: 2, EnrollID: 1, Score: 80},
	}
	ix := BuildIndex(att, ass)

	assert.Len(t, ix.Attendance(1), 4)
	assert.Equal(t, 3, ix.Attendance(1)[2].ID)
	assert.InDelta(t, 0.75, ix.MeanPresence(1), 1e-9)
	assert.InDelta(t, 70, ix.MeanScore(1), 1e-9)

	assert.Equal(t, 0.0, ix.MeanPresence(2))
	assert.Equal(t, 0.0, ix.MeanScore(2))
	assert.Empty(t, ix.Assessments(3))
	assert.Equal(t, 0.0, ix.MeanPresence(3))
}

func TestAggregate(t *testing.T) {
	students := []Student{{ID: 1, Name: "Ada", EntryGPA: 9.5}, {ID: 2, Name: "Bo", EntryGPA: 4}}
	enrollments := []Enrollment{{ID: 1, StudentID: 1, CourseID: 1}, {ID: 2, StudentID: 2, CourseID: 1}}

	var att []AttendanceRecord
	for i := range 10 {
		att = append(att, AttendanceRecord{ID: i + 1, EnrollID: 1, Present: true})
	}
	ass := []AssessmentRecord{{ID: 1, EnrollID: 1, Score: 95}}
	ix := BuildIndex(att, ass)

	finals, err := Aggregate(NewSource(11), enrollments, students, ix)
	require.NoError(t, err)
	require.Len(t, finals, 2)

	assert.Equal(t, 1, finals[0].ID)
	assert.Equal(t, 1, finals[0].EnrollID)
	assert.Equal(t, Grade(finals[0].FinalScore), finals[0].Grade)
	assert.Greater(t, finals[0].FinalScore, 60.0)

	// No records at all: presence 0, score 0.
	assert.Less(t, finals[1].FinalScore, 40.0)
	assert.Equal(t, "F", finals[1].Grade)
}

func TestAggregate_UnknownStudent(t *testing.T) {
	_, err := Aggregate(NewSource(1), []Enrollment{{ID: 1, StudentID: 9}}, nil, BuildIndex(nil, nil))
	assert.Error(t, err)
}

func TestFeedbackTemplate(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{90, "strong understanding"},
		{80.01, "strong understanding"},
		{80, "performing satisfactorily"},
		{60.5, "performing satisfactorily"},
		{60, "needs attention"},
		{45.01, "needs attention"},
		{45, "high risk"},
		{0, "high risk"},
	}
	for _, tt := range tests {
		got := FeedbackTemplate("Ada", tt.score)
		assert.True(t, strings.HasPrefix(got, "Ada "), got)
		assert.Contains(t, got, tt.want, "score %v", tt.score)
	}
}

func TestGenerateFeedback(t *testing.T) {
	students := []Student{{ID: 1, Name: "Ada Lovelace"}}
	enrollments := []Enrollment{{ID: 4, StudentID: 1}}
	finals := []FinalOutcome{{ID: 1, EnrollID: 4, FinalScore: 91}}

	notes, err := GenerateFeedback(NewSource(2), finals, enrollments, students)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, 4, notes[0].EnrollID)

	prefix := FeedbackTemplate("Ada Lovelace", 91) + " "
	assert.True(t, strings.HasPrefix(notes[0].Text, prefix))
	assert.Greater(t, len(notes[0].Text), len(prefix))

	_, err = GenerateFeedback(NewSource(2), []FinalOutcome{{ID: 1, EnrollID: 99}}, enrollments, students)
	assert.Error(t, err)
}
