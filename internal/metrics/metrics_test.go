package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.ObservePrediction(true, 0.8, 2*time.Millisecond)
	r.ObservePrediction(false, 0.2, time.Millisecond)
	r.ObservePrediction(false, 0.1, time.Millisecond)
	r.ObserveFailure("invalid_field")

	if got := testutil.ToFloat64(r.predictions.WithLabelValues("no")); got != 2 {
		t.Fatalf("expected 2 non-churn predictions, got %v", got)
	}
	if got := testutil.ToFloat64(r.predictions.WithLabelValues("yes")); got != 1 {
		t.Fatalf("expected 1 churn prediction, got %v", got)
	}
	if got := testutil.ToFloat64(r.failures.WithLabelValues("invalid_field")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}

	// yes/no predictions, one failure kind, latency and probability histograms.
	count, err := testutil.GatherAndCount(r.Registry())
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected 5 series, got %d", count)
	}

	var nilRecorder *Recorder
	nilRecorder.ObserveFailure("ignored")
}
