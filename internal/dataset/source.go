// Package dataset generates the synthetic student-performance dataset.
//
// Generation is a single-threaded pipeline of seven stages (students, courses,
// enrollments, attendance, assessments, finals, feedback). Every random draw,
// numeric or textual, comes from one owned Source so that a seed fully
// determines the output.
package dataset

import (
	"math/rand/v2"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Source is the single random stream threaded through every stage.
// It is not safe for concurrent use.
type Source struct {
	rng  *rand.Rand
	fake *gofakeit.Faker
}

// NewSource returns a Source seeded from seed. Numeric draws and fake-data
// draws share one PCG stream, so their interleaving is part of the output.
func NewSource(seed uint64) *Source {
	pcg := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Source{
		rng:  rand.New(pcg),
		fake: gofakeit.NewFaker(pcg, false),
	}
}

// Float64 returns a uniform draw in [0, 1).
func (s *Source) Float64() float64 {
	return s.rng.Float64()
}

// IntN returns a uniform draw in [0, n).
func (s *Source) IntN(n int) int {
	return s.rng.IntN(n)
}

// IntRange returns a uniform draw in [lo, hi], inclusive.
func (s *Source) IntRange(lo, hi int) int {
	return lo + s.rng.IntN(hi-lo+1)
}

// Normal returns a draw from Normal(mean, sd).
func (s *Source) Normal(mean, sd float64) float64 {
	return mean + sd*s.rng.NormFloat64()
}

// Bernoulli returns true with probability p.
func (s *Source) Bernoulli(p float64) bool {
	return s.rng.Float64() < p
}

// Choice returns a uniformly chosen element of items.
func (s *Source) Choice(items []string) string {
	return items[s.rng.IntN(len(items))]
}

// Sample returns k distinct values from 0..n-1 using a partial Fisher-Yates shuffle.
func (s *Source) Sample(n, k int) []int {
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + s.rng.IntN(n-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

// DayWithin returns a date uniformly chosen from the days (asOf-days, asOf].
func (s *Source) DayWithin(asOf time.Time, days int) time.Time {
	return asOf.AddDate(0, 0, -s.rng.IntN(days+1))
}

// DateBetween returns a date uniformly chosen from [from, to], both inclusive.
func (s *Source) DateBetween(from, to time.Time) time.Time {
	span := int(to.Sub(from).Hours() / 24)
	if span <= 0 {
		return from
	}
	return from.AddDate(0, 0, s.rng.IntN(span+1))
}

// Name returns a fake person name.
func (s *Source) Name() string {
	return s.fake.Name()
}

// Sentence returns a fake sentence of the given word count.
func (s *Source) Sentence(words int) string {
	return s.fake.Sentence(words)
}
