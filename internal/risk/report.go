package risk

import (
	"fmt"
)

// Class labels used in reports.
const (
	LabelNotAtRisk = "not_at_risk"
	LabelAtRisk    = "at_risk"
)

// ClassMetrics holds precision, recall and F1 for one class.
type ClassMetrics struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report is a binary classification report.
type Report struct {
	Classes  []ClassMetrics `json:"classes"`
	Accuracy float64        `json:"accuracy"`
	Total    int            `json:"total"`
}

// Evaluate compares predictions against true labels.
// Undefined ratios (no predicted or no actual members of a class) are 0.
func Evaluate(yTrue, yPred []bool) (*Report, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("got %d labels and %d predictions", len(yTrue), len(yPred))
	}

	var tp, tn, fp, fn int
	for i, actual := range yTrue {
		switch pred := yPred[i]; {
		case actual && pred:
			tp++
		case !actual && !pred:
			tn++
		case !actual && pred:
			fp++
		default:
			fn++
		}
	}

	r := &Report{
		Classes: []ClassMetrics{
			classMetrics(LabelNotAtRisk, tn, fn, fp),
			classMetrics(LabelAtRisk, tp, fp, fn),
		},
		Total: len(yTrue),
	}
	r.Accuracy = ratio(tp+tn, len(yTrue))
	return r, nil
}

// classMetrics computes the metrics of one class from its true positives,
// false positives and false negatives.
func classMetrics(label string, tp, fp, fn int) ClassMetrics {
	c := ClassMetrics{
		Label:     label,
		Precision: ratio(tp, tp+fp),
		Recall:    ratio(tp, tp+fn),
		Support:   tp + fn,
	}
	if c.Precision+c.Recall > 0 {
		c.F1 = 2 * c.Precision * c.Recall / (c.Precision + c.Recall)
	}
	return c
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
