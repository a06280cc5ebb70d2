package ops

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const decisionLatencyMetric = "loanchat_underwriting_decision_latency_seconds"

// LatencyStats summarizes the decision latency histogram.
type LatencyStats struct {
	Count int64   `json:"count"`
	P50   float64 `json:"p50_seconds"`
	P90   float64 `json:"p90_seconds"`
	P99   float64 `json:"p99_seconds"`
}

// DecisionLatency reads the decision latency histogram back out of the
// registry. It returns nil when no decision has been observed yet.
func DecisionLatency(gatherer prometheus.Gatherer) (*LatencyStats, error) {
	if gatherer == nil {
		return nil, nil
	}
	families, err := gatherer.Gather()
	if err != nil {
		return nil, err
	}
	for _, family := range families {
		if family.GetName() != decisionLatencyMetric {
			continue
		}
		for _, metric := range family.GetMetric() {
			hist := metric.GetHistogram()
			if hist == nil || hist.GetSampleCount() == 0 {
				continue
			}
			return &LatencyStats{
				Count: int64(hist.GetSampleCount()),
				P50:   histogramQuantile(0.50, hist),
				P90:   histogramQuantile(0.90, hist),
				P99:   histogramQuantile(0.99, hist),
			}, nil
		}
	}
	return nil, nil
}

// histogramQuantile estimates quantile q from cumulative histogram buckets
// with linear interpolation inside the matched bucket, the same estimate
// PromQL's histogram_quantile produces.
func histogramQuantile(q float64, hist *dto.Histogram) float64 {
	total := float64(hist.GetSampleCount())
	if total == 0 {
		return 0
	}
	rank := q * total

	prevUpper := 0.0
	prevCumulative := 0.0
	for _, bucket := range hist.GetBucket() {
		cumulative := float64(bucket.GetCumulativeCount())
		upper := bucket.GetUpperBound()
		if cumulative >= rank {
			if math.IsInf(upper, +1) {
				return prevUpper
			}
			inBucket := cumulative - prevCumulative
			if inBucket <= 0 {
				return upper
			}
			return prevUpper + (upper-prevUpper)*((rank-prevCumulative)/inBucket)
		}
		prevUpper = upper
		prevCumulative = cumulative
	}
	return prevUpper
}
