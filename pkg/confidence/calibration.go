package confidence

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

// minCalibratedSamples is the floor below which a confidence bin is
// treated as uncalibrated and the neutral factor 1.0 is returned instead.
const minCalibratedSamples = 10

// calibrationCacheTTL is how long a computed calibration snapshot is
// considered fresh before the next reader recomputes it.
const calibrationCacheTTL = time.Hour

// HistoricalStore is the subset of pkg/store.ClassificationStore the
// calibrator needs: the human-reviewed window it bins by confidence tenth.
type HistoricalStore interface {
	ListHumanReviewed(ctx context.Context, limit int) ([]*domain.ClassificationResult, error)
}

// binStats is one confidence-tenth bucket's calibration data, bucketed
// independently per predicted label so HISTORICAL_INACCURACY reflects
// "how well-calibrated was this model on CRITICAL calls in this decile",
// not an average across every label.
type binStats struct {
	correct int
	total   int
}

type snapshot struct {
	bins      map[domain.Severity]map[int]binStats
	meanByLbl map[domain.Severity]float64
	computedAt time.Time
}

// Calibrator computes and caches the historical-accuracy-by-confidence-bin
// snapshot §4.7 specifies, refreshed by exactly one concurrent reader via
// singleflight so a cache-stampede on expiry doesn't hit the store once
// per waiting goroutine.
type Calibrator struct {
	store      HistoricalStore
	windowDays int

	mu   sync.RWMutex
	snap *snapshot
	grp  singleflight.Group
}

// NewCalibrator builds a Calibrator over store.
func NewCalibrator(store HistoricalStore, windowDays int) *Calibrator {
	return &Calibrator{store: store, windowDays: windowDays}
}

// Factor returns the historical_calibration factor for predictedLabel at
// myConfidence: a multiplicative adjustment in [0.5, 1.5].
func (c *Calibrator) Factor(ctx context.Context, predictedLabel domain.Severity, myConfidence float64) (float64, error) {
	snap, err := c.currentSnapshot(ctx)
	if err != nil {
		return 1.0, err
	}

	bin := confidenceBin(myConfidence)
	bins := snap.bins[predictedLabel]
	stat, ok := bins[bin]
	if !ok || stat.total < minCalibratedSamples {
		return 1.0, nil
	}

	accuracy := float64(stat.correct) / float64(stat.total)
	meanConfidence := snap.meanByLbl[predictedLabel]
	deviationPenalty := math.Min(0.5*math.Abs(myConfidence-meanConfidence), 0.3)

	factor := 0.5 + 0.8*(accuracy-0.5) - deviationPenalty
	return clampFactor(factor), nil
}

func (c *Calibrator) currentSnapshot(ctx context.Context) (*snapshot, error) {
	c.mu.RLock()
	if c.snap != nil && time.Since(c.snap.computedAt) < calibrationCacheTTL {
		snap := c.snap
		c.mu.RUnlock()
		return snap, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.grp.Do("calibration_snapshot", func() (interface{}, error) {
		c.mu.RLock()
		if c.snap != nil && time.Since(c.snap.computedAt) < calibrationCacheTTL {
			snap := c.snap
			c.mu.RUnlock()
			return snap, nil
		}
		c.mu.RUnlock()

		snap, err := c.computeSnapshot(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.snap = snap
		c.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*snapshot), nil
}

func (c *Calibrator) computeSnapshot(ctx context.Context) (*snapshot, error) {
	results, err := c.store.ListHumanReviewed(ctx, 100000)
	if err != nil {
		return nil, err
	}

	bins := map[domain.Severity]map[int]binStats{}
	sums := map[domain.Severity]float64{}
	counts := map[domain.Severity]int{}

	cutoff := time.Now().UTC().AddDate(0, 0, -c.windowDays)
	for _, r := range results {
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		if r.FinalLabel == nil {
			continue
		}
		label := r.Label
		bin := confidenceBin(r.Confidence)
		if bins[label] == nil {
			bins[label] = map[int]binStats{}
		}
		stat := bins[label][bin]
		stat.total++
		if label == *r.FinalLabel {
			stat.correct++
		}
		bins[label][bin] = stat

		sums[label] += r.Confidence
		counts[label]++
	}

	means := map[domain.Severity]float64{}
	for label, sum := range sums {
		if counts[label] > 0 {
			means[label] = sum / float64(counts[label])
		}
	}

	return &snapshot{bins: bins, meanByLbl: means, computedAt: time.Now().UTC()}, nil
}

// confidenceBin buckets a [0,1] confidence into one of ten tenths (0-9).
func confidenceBin(confidence float64) int {
	bin := int(confidence * 10)
	if bin > 9 {
		bin = 9
	}
	if bin < 0 {
		bin = 0
	}
	return bin
}

func clampFactor(f float64) float64 {
	if f < 0.5 {
		return 0.5
	}
	if f > 1.5 {
		return 1.5
	}
	return f
}

