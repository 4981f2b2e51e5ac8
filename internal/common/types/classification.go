package types

const (
	// GroomingThreshold is the probability above which a prediction counts as a flag.
	GroomingThreshold = 0.7
	// ConfidenceThreshold is the model confidence above which a prediction is trusted.
	ConfidenceThreshold = 0.8
)

// ClassificationResult is the outcome of one classifier evaluation.
// A failed evaluation carries Err and zero numeric fields; it means "no information", not "safe".
type ClassificationResult struct {
	GroomingProbability float64 `json:"groomingProbability"`
	Confidence          float64 `json:"confidence"`
	PredictedClass      int     `json:"predictedClass"`
	IsGrooming          bool    `json:"isGrooming"`
	Note                string  `json:"note,omitempty"`
	Err                 string  `json:"error,omitempty"`
}

// FailedClassification builds the error variant of a result.
func FailedClassification(err error) ClassificationResult {
	return ClassificationResult{Err: err.Error()}
}

// Failed reports whether the classifier could not produce a prediction.
func (r ClassificationResult) Failed() bool {
	return r.Err != ""
}

// Flagged reports whether the prediction is jointly above both thresholds.
func (r ClassificationResult) Flagged() bool {
	return !r.Failed() &&
		r.GroomingProbability > GroomingThreshold &&
		r.Confidence > ConfidenceThreshold
}
