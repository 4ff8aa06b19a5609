package orchestrator

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/legal-severity-classifier/pkg/classifier"
	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

var _ = Describe("Reprocess", func() {
	var (
		deps     Deps
		results  *fakeResultStore
		existing *domain.ClassificationResult
		doc      *domain.Document
	)

	BeforeEach(func() {
		doc = testDoc("doc1")
		var err error
		existing, err = domain.NewClassificationResult(doc.ID, domain.SeverityMedium, 0.5, "old rationale", domain.RoutingAutoAccept, "v0")
		Expect(err).NotTo(HaveOccurred())

		results = newFakeResultStore()
		Expect(results.Put(context.Background(), existing)).To(Succeed())

		deps = Deps{
			Buckets:        &fakeBucketLoader{buckets: []*domain.Bucket{{BucketID: "b1"}}},
			ContextBuilder: &fakeContextBuilder{block: domain.EmptyContextBlock()},
			Classifier: &fakeClassifier{result: classifier.Result{
				Label: domain.SeverityHigh, Confidence: 0.9, Rationale: "new rationale",
			}},
			Results:       results,
			Documents:     &fakeDocumentLoader{byID: map[string]*domain.Document{doc.ID: doc}},
			Audit:         &fakeAuditAppender{},
			ConfidenceCfg: testConfidenceCfg(),
		}
	})

	It("skips a reprocess of a recent classification unless forced", func() {
		o := New(deps)
		result, diff, err := o.Reprocess(context.Background(), existing.ClassificationID, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(diff).To(BeNil())
		Expect(result.Label).To(Equal(domain.SeverityMedium))
	})

	It("reruns the pipeline and reports the diff when forced", func() {
		o := New(deps)
		result, diff, err := o.Reprocess(context.Background(), existing.ClassificationID, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(diff).NotTo(BeNil())
		Expect(diff.OldLabel).To(Equal(domain.SeverityMedium))
		Expect(diff.NewLabel).To(Equal(result.Label))
		Expect(diff.LabelChanged).To(Equal(diff.OldLabel != diff.NewLabel))
	})

	It("reruns automatically once the classification is old enough", func() {
		existing.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
		Expect(results.Put(context.Background(), existing)).To(Succeed())

		o := New(deps)
		_, diff, err := o.Reprocess(context.Background(), existing.ClassificationID, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(diff).NotTo(BeNil())
	})
})
