package budget

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenEstimator returns an Estimator backed by the named BPE encoding,
// for example "cl100k_base". It is exact where the heuristic is not, at
// the price of loading the encoding's vocabulary.
func TiktokenEstimator(encoding string) (Estimator, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("budget: load encoding %s: %w", encoding, err)
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}, nil
}

// EstimatorForModel returns an Estimator using the encoding registered for
// a model name, falling back to the heuristic when the model is unknown.
func EstimatorForModel(model string) Estimator {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return HeuristicEstimator
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}
}
