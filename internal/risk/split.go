package risk

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

// TrainTestSplit shuffles the indices 0..n-1 with the seed and returns the
// train and test indices, each in ascending order. testRatio must be in [0, 1).
func TrainTestSplit(n int, testRatio float64, seed uint64) (train, test []int, err error) {
	if n < 0 {
		return nil, nil, fmt.Errorf("negative row count %d", n)
	}
	if testRatio < 0 || testRatio >= 1 {
		return nil, nil, fmt.Errorf("test ratio %v out of range [0, 1)", testRatio)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	perm := rng.Perm(n)

	nTest := int(math.Round(float64(n) * testRatio))
	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	sort.Ints(test)
	sort.Ints(train)
	return train, test, nil
}
