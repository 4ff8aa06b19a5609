package buckets

import (
	"github.com/jordigilh/legal-severity-classifier/internal/config"
	"github.com/jordigilh/legal-severity-classifier/pkg/domain"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func testClusteringConfig() config.ClusteringConfig {
	return config.ClusteringConfig{
		MinK: 2, MaxK: 6, NInit: 3, MaxIter: 50, RandomSeed: 7,
	}
}

func refDoc(id string, vec []float64) *domain.Document {
	return &domain.Document{ID: id, Embedding: vec}
}

var _ = Describe("Engine", func() {
	var engine *Engine

	BeforeEach(func() {
		engine = New(testClusteringConfig())
	})

	Describe("BuildFrom", func() {
		It("returns a single bucket when the corpus is smaller than min_k", func() {
			docs := []*domain.Document{refDoc("d1", []float64{1, 0, 0})}
			out, err := engine.BuildFrom(docs)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(1))
			Expect(out[0].DocumentIDs).To(ConsistOf("d1"))
		})

		It("returns nil for an empty corpus", func() {
			out, err := engine.BuildFrom(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(BeEmpty())
		})

		It("separates two well-clustered groups into distinct buckets", func() {
			var docs []*domain.Document
			for i := 0; i < 8; i++ {
				docs = append(docs, refDoc(label("a", i), []float64{1, 0.01 * float64(i%3), 0}))
			}
			for i := 0; i < 8; i++ {
				docs = append(docs, refDoc(label("b", i), []float64{0, 0, 1 + 0.01*float64(i%3)}))
			}

			out, err := engine.BuildFrom(docs)
			Expect(err).NotTo(HaveOccurred())
			Expect(len(out)).To(BeNumerically(">=", 2))

			// Every bucket's members are drawn from exactly one of the two
			// groups (the "a" prefix or the "b" prefix), never mixed.
			for _, b := range out {
				prefixes := map[byte]bool{}
				for _, id := range b.DocumentIDs {
					prefixes[id[0]] = true
				}
				Expect(len(prefixes)).To(Equal(1))
			}
		})

		It("rejects mismatched document/centroid invariants nowhere — the produced buckets are internally valid", func() {
			var docs []*domain.Document
			for i := 0; i < 5; i++ {
				docs = append(docs, refDoc(label("x", i), []float64{0.5, 0.5, 0.1 * float64(i)}))
			}
			out, err := engine.BuildFrom(docs)
			Expect(err).NotTo(HaveOccurred())
			for _, b := range out {
				Expect(b.Validate()).To(Succeed())
			}
		})
	})

	Describe("SelectRelevant", func() {
		It("returns an empty list when no bucket meets the similarity threshold", func() {
			b, _ := domain.NewBucket("low-sim", []string{"d1"}, [][]float64{{1, 0, 0}})
			out, err := engine.SelectRelevant([]float64{0, 1, 0}, []*domain.Bucket{b}, 3, 0.7)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(BeEmpty())
		})

		It("ranks by descending similarity and truncates to top_k", func() {
			bHigh, _ := domain.NewBucket("high", []string{"d1"}, [][]float64{{1, 0, 0}})
			bMid, _ := domain.NewBucket("mid", []string{"d2"}, [][]float64{{0.9, 0.1, 0}})
			bLow, _ := domain.NewBucket("low", []string{"d3"}, [][]float64{{0, 1, 0}})

			out, err := engine.SelectRelevant([]float64{1, 0, 0}, []*domain.Bucket{bLow, bMid, bHigh}, 2, 0.5)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(2))
			Expect(out[0].Bucket.BucketName).To(Equal("high"))
			Expect(out[0].Similarity).To(BeNumerically(">=", out[1].Similarity))
		})

		It("rejects an empty query vector", func() {
			_, err := engine.SelectRelevant(nil, nil, 3, 0.7)
			Expect(err).To(HaveOccurred())
		})

		It("skips buckets with no members", func() {
			empty := &domain.Bucket{BucketID: "empty", DocumentCount: 0}
			out, err := engine.SelectRelevant([]float64{1, 0, 0}, []*domain.Bucket{empty}, 3, 0.0)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(BeEmpty())
		})
	})

	Describe("Merge", func() {
		It("unions membership and flags the result stale", func() {
			b1, _ := domain.NewBucket("b1", []string{"d1", "d2"}, [][]float64{{1, 0, 0}, {1, 0, 0}})
			b2, _ := domain.NewBucket("b2", []string{"d3"}, [][]float64{{0, 1, 0}})

			merged, err := engine.Merge(b1, b2)
			Expect(err).NotTo(HaveOccurred())
			Expect(merged.DocumentIDs).To(ConsistOf("d1", "d2", "d3"))
			Expect(merged.DocumentCount).To(Equal(3))
			Expect(merged.Stale).To(BeTrue())
			Expect(merged.CentroidEmbedding).NotTo(BeEmpty())
		})

		It("rejects a nil bucket", func() {
			b1, _ := domain.NewBucket("b1", []string{"d1"}, [][]float64{{1, 0, 0}})
			_, err := engine.Merge(b1, nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Split", func() {
		It("re-clusters a bucket's members into n sub-buckets", func() {
			ids := []string{"a1", "a2", "b1", "b2"}
			embeddings := map[string][]float64{
				"a1": {1, 0, 0}, "a2": {1, 0.01, 0},
				"b1": {0, 1, 0}, "b2": {0, 1, 0.01},
			}
			vecs := make([][]float64, len(ids))
			for i, id := range ids {
				vecs[i] = embeddings[id]
			}
			b, _ := domain.NewBucket("whole", ids, vecs)

			splitCfg := testClusteringConfig()
			splitCfg.MinK = 2
			e := New(splitCfg)
			out, err := e.Split(b, 2, embeddings)
			Expect(err).NotTo(HaveOccurred())
			Expect(len(out)).To(BeNumerically(">=", 1))
			var total int
			for _, sb := range out {
				total += sb.DocumentCount
			}
			Expect(total).To(Equal(4))
		})

		It("rejects n < 2", func() {
			b, _ := domain.NewBucket("whole", []string{"a1"}, [][]float64{{1, 0, 0}})
			_, err := engine.Split(b, 1, map[string][]float64{"a1": {1, 0, 0}})
			Expect(err).To(HaveOccurred())
		})

		It("rejects a missing member embedding", func() {
			b, _ := domain.NewBucket("whole", []string{"a1", "a2"}, [][]float64{{1, 0, 0}, {0, 1, 0}})
			_, err := engine.Split(b, 2, map[string][]float64{"a1": {1, 0, 0}})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Validate", func() {
		It("reports orphans, missing ids, duplicates, and empty buckets", func() {
			docs := []*domain.Document{
				refDoc("d1", []float64{1, 0, 0}),
				refDoc("d2", []float64{0, 1, 0}),
				refDoc("d3", []float64{0, 0, 1}), // orphan: in no bucket
			}
			bGood := &domain.Bucket{BucketID: "good", DocumentIDs: []string{"d1"}, DocumentCount: 1}
			bMissing := &domain.Bucket{BucketID: "missing-ref", DocumentIDs: []string{"ghost"}, DocumentCount: 1}
			bDup := &domain.Bucket{BucketID: "dup", DocumentIDs: []string{"d2", "d2"}, DocumentCount: 2}
			bMismatch := &domain.Bucket{BucketID: "mismatch", DocumentIDs: []string{"d1", "d2"}, DocumentCount: 5}
			bEmpty := &domain.Bucket{BucketID: "empty", DocumentIDs: nil, DocumentCount: 0}

			report := engine.Validate([]*domain.Bucket{bGood, bMissing, bDup, bMismatch, bEmpty}, docs)

			Expect(report.OrphanDocumentIDs).To(ContainElement("d3"))
			Expect(report.MissingDocumentIDs).To(ContainElement("ghost"))
			Expect(report.DuplicateMembers).To(ContainElement("d2"))
			Expect(report.CountMismatches).To(ContainElement("mismatch"))
			Expect(report.EmptyBuckets).To(ContainElement("empty"))
			Expect(report.Clean()).To(BeFalse())
		})

		It("reports clean for a well-formed bucket set", func() {
			docs := []*domain.Document{refDoc("d1", []float64{1, 0, 0})}
			b := &domain.Bucket{BucketID: "good", DocumentIDs: []string{"d1"}, DocumentCount: 1}
			report := engine.Validate([]*domain.Bucket{b}, docs)
			Expect(report.Clean()).To(BeTrue())
		})
	})
})

func label(prefix string, i int) string {
	return prefix + string(rune('0'+i))
}
