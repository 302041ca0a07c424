package dataset

// SampleEnrollments assigns each student k distinct courses, k uniform in
// [MinCoursesPerStudent, MaxCoursesPerStudent], each with a uniform semester.
// Enrollment ids are dense in generation order.
func SampleEnrollments(src *Source, p Params, students []Student, courses []Course) ([]Enrollment, error) {
	if len(courses) == 0 {
		return nil, &ConfigError{Field: "courses", Reason: "cannot sample enrollments from an empty course set"}
	}
	if p.MaxCoursesPerStudent > len(courses) {
		return nil, &ConfigError{Field: "max_courses_per_student", Reason: "exceeds the course set"}
	}

	enrollments := make([]Enrollment, 0, len(students)*p.MaxCoursesPerStudent)
	next := 1
	for _, s := range students {
		k := src.IntRange(p.MinCoursesPerStudent, p.MaxCoursesPerStudent)
		for _, ci := range src.Sample(len(courses), k) {
			enrollments = append(enrollments, Enrollment{
				ID:        next,
				StudentID: s.ID,
				CourseID:  courses[ci].ID,
				Semester:  src.Choice(p.Semesters),
			})
			next++
		}
	}
	return enrollments, nil
}
