package buckets

import "github.com/jordigilh/legal-severity-classifier/internal/config"

// kCandidate is one swept K's clustering outcome, kept around so the
// elbow/silhouette reconciliation can re-examine neighbors without
// re-running k-means.
type kCandidate struct {
	k          int
	run        kmeansRun
	silhouette float64
}

// chooseK sweeps K from cfg.MinK to min(cfg.MaxK, N-1), scoring each by
// inertia and silhouette. reconcileK then reconciles the elbow-of-inertia
// candidate against the silhouette-argmax candidate per §4.3: if they agree, use it;
// otherwise evaluate both plus K±1 around the elbow and keep whichever of
// those has the highest silhouette.
func chooseK(vectors [][]float64, cfg config.ClusteringConfig) []kCandidate {
	maxK := cfg.MaxK
	if maxK > len(vectors)-1 {
		maxK = len(vectors) - 1
	}
	if maxK < cfg.MinK {
		return nil
	}

	candidates := make([]kCandidate, 0, maxK-cfg.MinK+1)
	for k := cfg.MinK; k <= maxK; k++ {
		run := runKMeans(vectors, k, cfg)
		sil := silhouetteScore(vectors, run.assignments, k)
		candidates = append(candidates, kCandidate{k: k, run: run, silhouette: sil})
	}
	return candidates
}

// reconcileK picks the final K from the swept candidates using the
// elbow/silhouette agreement rule. Candidates must be contiguous in K,
// sorted ascending, starting at cfg.MinK (chooseK's contract).
func reconcileK(candidates []kCandidate) int {
	if len(candidates) == 0 {
		return 0
	}
	if len(candidates) == 1 {
		return candidates[0].k
	}

	elbowIdx := elbowIndex(candidates)
	silhouetteIdx := silhouetteArgmaxIndex(candidates)
	if elbowIdx == silhouetteIdx {
		return candidates[elbowIdx].k
	}

	// Disagreement: evaluate both candidates plus the elbow's immediate K±1
	// neighbors, keeping whichever has the highest silhouette.
	bestIdx := elbowIdx
	for _, idx := range []int{elbowIdx - 1, elbowIdx, elbowIdx + 1, silhouetteIdx} {
		if idx < 0 || idx >= len(candidates) {
			continue
		}
		if candidates[idx].silhouette > candidates[bestIdx].silhouette {
			bestIdx = idx
		}
	}
	return candidates[bestIdx].k
}

// elbowIndex returns the index of the K that maximizes the discrete second
// derivative of inertia(K): inertia[i-1] - 2*inertia[i] + inertia[i+1].
// With three or more candidates, endpoints (no both-sided neighbor) are never
// chosen as the elbow; with fewer than three it returns index 0.
func elbowIndex(candidates []kCandidate) int {
	if len(candidates) < 3 {
		return 0
	}
	best := 1
	bestCurvature := secondDerivative(candidates, 1)
	for i := 2; i < len(candidates)-1; i++ {
		if d := secondDerivative(candidates, i); d > bestCurvature {
			bestCurvature = d
			best = i
		}
	}
	return best
}

func secondDerivative(candidates []kCandidate, i int) float64 {
	return candidates[i-1].run.inertia - 2*candidates[i].run.inertia + candidates[i+1].run.inertia
}

func silhouetteArgmaxIndex(candidates []kCandidate) int {
	best := 0
	for i, c := range candidates {
		if c.silhouette > candidates[best].silhouette {
			best = i
		}
	}
	return best
}
