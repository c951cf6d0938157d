package faceapi

import "sort"

// Expression is a facial expression label.
type Expression string

// The seven expression labels, in canonical order.
const (
	Neutral   Expression = "neutral"
	Happy     Expression = "happy"
	Sad       Expression = "sad"
	Angry     Expression = "angry"
	Fearful   Expression = "fearful"
	Disgusted Expression = "disgusted"
	Surprised Expression = "surprised"
)

// Expressions lists every label in canonical order.
var Expressions = []Expression{Neutral, Happy, Sad, Angry, Fearful, Disgusted, Surprised}

// FaceExpressions maps each label to its probability.
type FaceExpressions map[Expression]float64

// ExpressionScore is one label/probability pair.
type ExpressionScore struct {
	Expression  Expression `json:"expression"`
	Probability float64    `json:"probability"`
}

// AsSortedArray returns the scores by descending probability. Ties keep
// canonical order.
func (e FaceExpressions) AsSortedArray() []ExpressionScore {
	out := make([]ExpressionScore, 0, len(e))
	for _, label := range Expressions {
		if p, ok := e[label]; ok {
			out = append(out, ExpressionScore{Expression: label, Probability: p})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Probability > out[j].Probability
	})
	return out
}

// Dominant returns the most probable expression.
// The second value is false when the map is empty.
func (e FaceExpressions) Dominant() (ExpressionScore, bool) {
	sorted := e.AsSortedArray()
	if len(sorted) == 0 {
		return ExpressionScore{}, false
	}
	return sorted[0], true
}

// Above returns the scores strictly greater than min, sorted descending.
func (e FaceExpressions) Above(min float64) []ExpressionScore {
	var out []ExpressionScore
	for _, s := range e.AsSortedArray() {
		if s.Probability > min {
			out = append(out, s)
		}
	}
	return out
}
