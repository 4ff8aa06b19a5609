// Package buckets implements C3: organizing the reference corpus into
// semantic clusters (K-means on L2-normalized embeddings, cosine geometry),
// choosing K without a fixed value, and keeping centroids within bounded
// drift of their members' true mean.
package buckets

import (
	"math"
	"math/rand"

	"github.com/jordigilh/legal-severity-classifier/internal/config"
	sharedmath "github.com/jordigilh/legal-severity-classifier/pkg/shared/math"
)

// cosineDistance is 1-cosine similarity, the geometry k-means clusters
// under here: L2-normalized vectors make squared-Euclidean and cosine
// distance rank identically, but callers (silhouette, inertia) read more
// clearly against the [0,2] cosine-distance scale directly.
func cosineDistance(a, b []float64) float64 {
	return 1 - sharedmath.CosineSimilarity(a, b)
}

// kmeansRun is one restart's outcome: a cluster index per input vector, the
// resulting centroids, and the total intra-cluster distance (inertia).
type kmeansRun struct {
	assignments []int
	centroids   [][]float64
	inertia     float64
}

// runKMeans clusters vectors into k groups, restarting nInit times from
// distinct seeds (derived from cfg.RandomSeed so repeated recomputes on
// identical input are reproducible) and keeping the lowest-inertia result.
func runKMeans(vectors [][]float64, k int, cfg config.ClusteringConfig) kmeansRun {
	nInit := cfg.NInit
	if nInit < 1 {
		nInit = 1
	}
	maxIter := cfg.MaxIter
	if maxIter < 1 {
		maxIter = 300
	}

	var best kmeansRun
	bestSet := false
	for init := 0; init < nInit; init++ {
		seed := cfg.RandomSeed + int64(init)
		run := kmeansOnce(vectors, k, maxIter, seed)
		if !bestSet || run.inertia < best.inertia {
			best = run
			bestSet = true
		}
	}
	return best
}

// kmeansOnce is a single k-means++-seeded run to convergence or maxIter.
func kmeansOnce(vectors [][]float64, k int, maxIter int, seed int64) kmeansRun {
	rng := rand.New(rand.NewSource(seed))
	centroids := kmeansPlusPlusSeed(vectors, k, rng)
	assignments := make([]int, len(vectors))

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, v := range vectors {
			cluster := nearestCentroid(v, centroids)
			if cluster != assignments[i] {
				assignments[i] = cluster
				changed = true
			}
		}
		centroids = recomputeCentroids(vectors, assignments, k, centroids)
		if iter > 0 && !changed {
			break
		}
	}

	return kmeansRun{
		assignments: assignments,
		centroids:   centroids,
		inertia:     inertia(vectors, assignments, centroids),
	}
}

// kmeansPlusPlusSeed picks k initial centroids with probability proportional
// to squared distance from already-chosen centroids, spreading the seeds
// rather than risking a degenerate random draw from a small corpus.
func kmeansPlusPlusSeed(vectors [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(vectors)
	centroids := make([][]float64, 0, k)
	first := vectors[rng.Intn(n)]
	centroids = append(centroids, append([]float64(nil), first...))

	for len(centroids) < k {
		weights := make([]float64, n)
		var total float64
		for i, v := range vectors {
			d := nearestDistance(v, centroids)
			weights[i] = d * d
			total += weights[i]
		}
		if total == 0 {
			// All remaining points coincide with a chosen centroid; fill out
			// with arbitrary distinct points to reach k.
			centroids = append(centroids, append([]float64(nil), vectors[rng.Intn(n)]...))
			continue
		}
		target := rng.Float64() * total
		var cum float64
		chosen := vectors[n-1]
		for i, w := range weights {
			cum += w
			if cum >= target {
				chosen = vectors[i]
				break
			}
		}
		centroids = append(centroids, append([]float64(nil), chosen...))
	}
	return centroids
}

func nearestCentroid(v []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, c := range centroids {
		d := cosineDistance(v, c)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func nearestDistance(v []float64, centroids [][]float64) float64 {
	best := math.Inf(1)
	for _, c := range centroids {
		if d := cosineDistance(v, c); d < best {
			best = d
		}
	}
	return best
}

// recomputeCentroids replaces each cluster's centroid with the
// L2-normalized mean of its current members; a cluster that lost all its
// members keeps its previous centroid so the iteration stays well-defined.
func recomputeCentroids(vectors [][]float64, assignments []int, k int, previous [][]float64) [][]float64 {
	if len(vectors) == 0 {
		return previous
	}
	dim := len(vectors[0])
	sums := make([][]float64, k)
	counts := make([]int, k)
	for i := range sums {
		sums[i] = make([]float64, dim)
	}
	for i, v := range vectors {
		c := assignments[i]
		counts[c]++
		for d := 0; d < dim && d < len(v); d++ {
			sums[c][d] += v[d]
		}
	}
	out := make([][]float64, k)
	for i := 0; i < k; i++ {
		if counts[i] == 0 {
			out[i] = previous[i]
			continue
		}
		mean := make([]float64, dim)
		for d := range mean {
			mean[d] = sums[i][d] / float64(counts[i])
		}
		out[i] = sharedmath.L2Normalize(mean)
	}
	return out
}

// inertia is the sum of each point's cosine distance to its assigned
// centroid, the quantity the elbow heuristic sweeps over K.
func inertia(vectors [][]float64, assignments []int, centroids [][]float64) float64 {
	var total float64
	for i, v := range vectors {
		total += cosineDistance(v, centroids[assignments[i]])
	}
	return total
}

// silhouetteScore is the mean silhouette coefficient across all points:
// for point i, (b(i)-a(i)) / max(a(i),b(i)), where a(i) is the mean
// distance to other members of its own cluster and b(i) is the mean
// distance to the nearest other cluster. Singleton clusters score 0 for
// their lone member (undefined a(i)).
func silhouetteScore(vectors [][]float64, assignments []int, k int) float64 {
	n := len(vectors)
	if n < 2 || k < 2 {
		return 0
	}
	members := make([][]int, k)
	for i, c := range assignments {
		members[c] = append(members[c], i)
	}

	var total float64
	for i, v := range vectors {
		own := assignments[i]
		a := meanDistanceWithin(v, vectors, members[own], i)

		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c == own || len(members[c]) == 0 {
				continue
			}
			d := meanDistanceWithin(v, vectors, members[c], -1)
			if d < b {
				b = d
			}
		}
		if math.IsInf(b, 1) || len(members[own]) <= 1 {
			continue
		}
		denom := math.Max(a, b)
		if denom == 0 {
			continue
		}
		total += (b - a) / denom
	}
	return total / float64(n)
}

// meanDistanceWithin averages v's cosine distance to every index in group,
// excluding excludeIdx (v's own position, when group is its own cluster).
func meanDistanceWithin(v []float64, vectors [][]float64, group []int, excludeIdx int) float64 {
	var sum float64
	var count int
	for _, idx := range group {
		if idx == excludeIdx {
			continue
		}
		sum += cosineDistance(v, vectors[idx])
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
