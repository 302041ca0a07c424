package dataset

import (
	"fmt"
	"math"
)

var (
	genders    = []string{"M", "F", "O"}
	socioBands = []string{"low", "mid", "high"}
)

const (
	gpaMean = 7.0
	gpaSD   = 0.9
	gpaMin  = 4.0
	gpaMax  = 9.5

	minAge = 17
	maxAge = 25
)

// GenerateStudents draws p.NStudents students with ids 1..N.
func GenerateStudents(src *Source, p Params) []Student {
	// Age 17-25 at the reference date.
	oldest := p.AsOf.AddDate(-(maxAge + 1), 0, 1)
	youngest := p.AsOf.AddDate(-minAge, 0, 0)

	students := make([]Student, p.NStudents)
	for i := range students {
		id := i + 1
		students[i] = Student{
			ID:        id,
			RegNo:     RegNo(id),
			Name:      src.Name(),
			DOB:       src.DateBetween(oldest, youngest),
			Gender:    src.Choice(genders),
			EntryGPA:  round2(clip(src.Normal(gpaMean, gpaSD), gpaMin, gpaMax)),
			SocioEcon: src.Choice(socioBands),
		}
	}
	return students
}

// RegNo formats a registration number from the last four digits of 1000+id.
func RegNo(id int) string {
	digits := fmt.Sprintf("%d", 1000+id)
	return "23BDS" + digits[len(digits)-4:]
}

// GenerateCourses draws p.NCourses courses with ids 1..M.
func GenerateCourses(src *Source, p Params) []Course {
	courses := make([]Course, p.NCourses)
	for i := range courses {
		id := i + 1
		credits := 4
		if id%2 == 0 {
			credits = 3
		}
		courses[i] = Course{
			ID:         id,
			Code:       fmt.Sprintf("CSE%d", 100+i),
			Title:      fmt.Sprintf("Course %d", id),
			Credits:    credits,
			Instructor: src.Name(),
		}
	}
	return courses
}

func clip(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// studentsByID indexes students by id.
func studentsByID(students []Student) map[int]*Student {
	m := make(map[int]*Student, len(students))
	for i := range students {
		m[students[i].ID] = &students[i]
	}
	return m
}
