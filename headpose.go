package reenact

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gorgonia.org/tensor"
)

const (
	// binWidth is the angular width of a pose bin in degrees.
	binWidth = 3
	// binOffset shifts the expected bin index into the [-99, 99] degree range.
	binOffset = 99
)

// binIndex holds the bin indices 0..NumBins-1 used to compute the expected bin.
var binIndex = floats.Span(make([]float64, NumBins), 0, NumBins-1)

// DecodeAngle converts the raw bin scores of an angle prediction,
// shaped (B, NumBins), into one angle in degrees per batch element.
func DecodeAngle(pred *tensor.Dense) ([]float64, error) {
	if err := expectShape("pose prediction", pred, -1, NumBins); err != nil {
		return nil, err
	}
	data, err := Float32s(pred)
	if err != nil {
		return nil, err
	}
	batch := pred.Shape()[0]
	angles := make([]float64, batch)
	row := make([]float64, NumBins)

	for b := 0; b < batch; b++ {
		for i, v := range data[b*NumBins : (b+1)*NumBins] {
			row[i] = float64(v)
		}
		angles[b] = DecodeBins(row)
	}
	return angles, nil
}

// DecodeBins turns the scores of a single prediction into an angle in degrees.
// The scores are normalized with softmax and the expected bin index is mapped
// onto the [-99, 99] degree range in steps of 3 degrees.
// The length of scores must be NumBins.
func DecodeBins(scores []float64) float64 {
	probs := make([]float64, len(scores))
	copy(probs, scores)

	// Shift by the maximum score to keep the exponentials finite.
	floats.AddConst(-floats.Max(probs), probs)
	for i, v := range probs {
		probs[i] = math.Exp(v)
	}
	floats.Scale(1/floats.Sum(probs), probs)

	return floats.Dot(probs, binIndex)*binWidth - binOffset
}
