package metrics

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

var getHealth = Labels{Method: "GET", Route: "/health", Code: "200"}

func newTestHistogram() *Histogram {
	return NewHistogram(HistogramOpts{
		Namespace: "test",
		Name:      "duration_ms",
		Help:      "test durations",
	})
}

func snapshot(t *testing.T, h *Histogram, labels Labels) *dto.Histogram {
	t.Helper()
	m, ok := h.vec.WithLabelValues(labels.values()...).(prometheus.Metric)
	if !ok {
		t.Fatal("histogram child does not implement prometheus.Metric")
	}
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return out.GetHistogram()
}

func bucketCount(t *testing.T, hist *dto.Histogram, bound float64) uint64 {
	t.Helper()
	for _, b := range hist.GetBucket() {
		if b.GetUpperBound() == bound {
			return b.GetCumulativeCount()
		}
	}
	t.Fatalf("no bucket with upper bound %v", bound)
	return 0
}

func TestObserveCountAndSum(t *testing.T) {
	h := newTestHistogram()
	rng := rand.New(rand.NewSource(42))

	const n = 250
	var sum float64
	for i := 0; i < n; i++ {
		v := rng.Float64() * 2000
		sum += v
		if err := h.Observe(v, getHealth); err != nil {
			t.Fatalf("observe %v: %v", v, err)
		}
	}

	got := snapshot(t, h, getHealth)
	if got.GetSampleCount() != n {
		t.Fatalf("expected count %d, got %d", n, got.GetSampleCount())
	}
	if math.Abs(got.GetSampleSum()-sum) > 1e-6 {
		t.Fatalf("expected sum %v, got %v", sum, got.GetSampleSum())
	}

	var prev uint64
	for _, b := range got.GetBucket() {
		if b.GetCumulativeCount() < prev {
			t.Fatalf("bucket le=%v count %d below previous %d", b.GetUpperBound(), b.GetCumulativeCount(), prev)
		}
		if b.GetCumulativeCount() > got.GetSampleCount() {
			t.Fatalf("bucket le=%v count %d above total %d", b.GetUpperBound(), b.GetCumulativeCount(), got.GetSampleCount())
		}
		prev = b.GetCumulativeCount()
	}
}

func TestObserveBucketPlacement(t *testing.T) {
	h := newTestHistogram()

	for _, v := range []float64{10, 49.5, 50} {
		if err := h.Observe(v, getHealth); err != nil {
			t.Fatalf("observe %v: %v", v, err)
		}
	}
	got := snapshot(t, h, getHealth)
	for _, bound := range DefaultDurationBuckets {
		if c := bucketCount(t, got, bound); c != 3 {
			t.Fatalf("le=%v: expected 3, got %d", bound, c)
		}
	}

	if err := h.Observe(1500, getHealth); err != nil {
		t.Fatalf("observe: %v", err)
	}
	got = snapshot(t, h, getHealth)
	if c := bucketCount(t, got, 1000); c != 3 {
		t.Fatalf("value above last bound must not land in le=1000, got %d", c)
	}
	if got.GetSampleCount() != 4 {
		t.Fatalf("expected +Inf count 4, got %d", got.GetSampleCount())
	}
}

func TestObserveKeepsLabelCombinationsApart(t *testing.T) {
	h := newTestHistogram()
	notFound := Labels{Method: "GET", Route: "unmatched", Code: "404"}

	_ = h.Observe(75, getHealth)
	_ = h.Observe(75, notFound)
	_ = h.Observe(75, notFound)

	if c := snapshot(t, h, getHealth).GetSampleCount(); c != 1 {
		t.Fatalf("health: expected 1, got %d", c)
	}
	if c := snapshot(t, h, notFound).GetSampleCount(); c != 2 {
		t.Fatalf("unmatched: expected 2, got %d", c)
	}
}

func TestObserveRejectsInvalidValues(t *testing.T) {
	h := newTestHistogram()
	for _, v := range []float64{-1, math.NaN(), math.Inf(1)} {
		if err := h.Observe(v, getHealth); !errors.Is(err, ErrInvalidObservation) {
			t.Fatalf("observe %v: expected ErrInvalidObservation, got %v", v, err)
		}
	}
	if err := h.Observe(0, getHealth); err != nil {
		t.Fatalf("zero must be accepted: %v", err)
	}
	if c := snapshot(t, h, getHealth).GetSampleCount(); c != 1 {
		t.Fatalf("expected only the zero observation, got %d", c)
	}
}

func TestInitExportsEmptySeries(t *testing.T) {
	h := newTestHistogram()
	h.Init(getHealth)

	got := snapshot(t, h, getHealth)
	if got.GetSampleCount() != 0 || got.GetSampleSum() != 0 {
		t.Fatalf("expected empty series, got count=%d sum=%v", got.GetSampleCount(), got.GetSampleSum())
	}
	if len(got.GetBucket()) != len(DefaultDurationBuckets) {
		t.Fatalf("expected %d buckets, got %d", len(DefaultDurationBuckets), len(got.GetBucket()))
	}
}

func TestTimerStopRecordsMilliseconds(t *testing.T) {
	h := newTestHistogram()
	now := time.Unix(1_700_000_000, 0)
	h.now = func() time.Time { return now }

	timer := h.StartTimer()
	now = now.Add(120 * time.Millisecond)

	if elapsed := timer.Stop(getHealth); elapsed != 120 {
		t.Fatalf("expected 120ms, got %v", elapsed)
	}
	got := snapshot(t, h, getHealth)
	if got.GetSampleCount() != 1 || got.GetSampleSum() != 120 {
		t.Fatalf("expected one 120ms observation, got count=%d sum=%v", got.GetSampleCount(), got.GetSampleSum())
	}
	if c := bucketCount(t, got, 100); c != 0 {
		t.Fatalf("le=100: expected 0, got %d", c)
	}
	if c := bucketCount(t, got, 200); c != 1 {
		t.Fatalf("le=200: expected 1, got %d", c)
	}
}

func TestTimerStopRecordsOnce(t *testing.T) {
	h := newTestHistogram()
	now := time.Unix(1_700_000_000, 0)
	h.now = func() time.Time { return now }

	timer := h.StartTimer()
	now = now.Add(10 * time.Millisecond)
	first := timer.Stop(getHealth)
	now = now.Add(time.Second)
	second := timer.Stop(getHealth)

	if first != second {
		t.Fatalf("expected repeated Stop to return %v, got %v", first, second)
	}
	if c := snapshot(t, h, getHealth).GetSampleCount(); c != 1 {
		t.Fatalf("expected a single observation, got %d", c)
	}
}

func TestTimerNeverStoppedRecordsNothing(t *testing.T) {
	h := newTestHistogram()
	_ = h.StartTimer()

	if c := snapshot(t, h, getHealth).GetSampleCount(); c != 0 {
		t.Fatalf("expected no observation, got %d", c)
	}
}

func TestObserveConcurrent(t *testing.T) {
	h := newTestHistogram()

	const (
		workers = 16
		perWork = 500
	)
	// Integral values keep the float sum exact regardless of ordering.
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWork; i++ {
				if err := h.Observe(float64((w*perWork+i)%1200), getHealth); err != nil {
					t.Errorf("observe: %v", err)
					return
				}
			}
		}(w)
	}

	// Read concurrently with the writers: every snapshot must be consistent.
	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := snapshot(t, h, getHealth)
			for _, b := range snap.GetBucket() {
				if b.GetCumulativeCount() > snap.GetSampleCount() {
					t.Errorf("torn snapshot: le=%v count %d above total %d",
						b.GetUpperBound(), b.GetCumulativeCount(), snap.GetSampleCount())
					return
				}
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-readerDone

	var wantSum float64
	for v := 0; v < workers*perWork; v++ {
		wantSum += float64(v % 1200)
	}
	got := snapshot(t, h, getHealth)
	if got.GetSampleCount() != workers*perWork {
		t.Fatalf("expected count %d, got %d", workers*perWork, got.GetSampleCount())
	}
	if got.GetSampleSum() != wantSum {
		t.Fatalf("expected sum %v, got %v", wantSum, got.GetSampleSum())
	}
}
