package dataset

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gradesim/gradesim/internal/dag"
)

// Stage is one step of the generation pipeline.
type Stage struct {
	Name        string
	Description string
	run         func(*build) (int, error)
}

// build carries the in-progress dataset between stages.
type build struct {
	src *Source
	ds  *Dataset
	ix  *EnrollmentIndex
}

var stages = []Stage{
	{Name: TableStudents, Description: "entity generator: students", run: func(b *build) (int, error) {
		b.ds.Students = GenerateStudents(b.src, b.ds.Params)
		return len(b.ds.Students), nil
	}},
	{Name: TableCourses, Description: "entity generator: courses", run: func(b *build) (int, error) {
		b.ds.Courses = GenerateCourses(b.src, b.ds.Params)
		return len(b.ds.Courses), nil
	}},
	{Name: TableEnrollments, Description: "enrollment sampler", run: func(b *build) (int, error) {
		var err error
		b.ds.Enrollments, err = SampleEnrollments(b.src, b.ds.Params, b.ds.Students, b.ds.Courses)
		return len(b.ds.Enrollments), err
	}},
	{Name: TableAttendance, Description: "attendance sampler", run: func(b *build) (int, error) {
		var err error
		b.ds.Attendance, err = SampleAttendance(b.src, b.ds.Params, b.ds.Enrollments, b.ds.Students)
		return len(b.ds.Attendance), err
	}},
	{Name: TableAssessments, Description: "assessment sampler", run: func(b *build) (int, error) {
		var err error
		b.ds.Assessments, err = SampleAssessments(b.src, b.ds.Params, b.ds.Enrollments, b.ds.Students)
		return len(b.ds.Assessments), err
	}},
	{Name: TableFinals, Description: "derived-metrics aggregator", run: func(b *build) (int, error) {
		b.ix = BuildIndex(b.ds.Attendance, b.ds.Assessments)
		var err error
		b.ds.Finals, err = Aggregate(b.src, b.ds.Enrollments, b.ds.Students, b.ix)
		return len(b.ds.Finals), err
	}},
	{Name: TableFeedback, Description: "feedback text generator", run: func(b *build) (int, error) {
		var err error
		b.ds.Feedback, err = GenerateFeedback(b.src, b.ds.Finals, b.ds.Enrollments, b.ds.Students)
		return len(b.ds.Feedback), err
	}},
}

// StageGraph returns the stage dependency graph. Every stage depends on the one
// before it, since all stages draw from the same random stream.
func StageGraph() (*dag.Graph[Stage], error) {
	g := dag.NewGraph[Stage]()
	for _, s := range stages {
		g.AddNode(s.Name, s)
	}
	for i := 1; i < len(stages); i++ {
		if err := g.AddEdge(stages[i-1].Name, stages[i].Name); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Option configures Generate.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for per-stage progress.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Generate validates p and runs every stage in graph order.
// It returns a *ConfigError before building anything when p is malformed.
func Generate(p Params, opts ...Option) (*Dataset, error) {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	g, err := StageGraph()
	if err != nil {
		return nil, err
	}
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("failed to order stages: %w", err)
	}

	b := &build{src: NewSource(p.Seed), ds: &Dataset{Params: p}}
	for _, node := range order {
		start := time.Now()
		rows, err := node.Data.run(b)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", node.ID, err)
		}
		o.logger.Debug("stage complete", "stage", node.ID, "rows", rows, "duration", time.Since(start))
	}
	return b.ds, nil
}
