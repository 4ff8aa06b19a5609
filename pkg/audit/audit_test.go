package audit

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

type fakeAppender struct {
	mu     sync.Mutex
	events []*domain.AuditEvent
}

func (f *fakeAppender) Append(_ context.Context, e *domain.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

var _ = Describe("Recorder", func() {
	It("assigns strictly increasing emission sequences within a session", func() {
		store := &fakeAppender{}
		r := NewRecorder(store, "session-1")

		Expect(r.ClassificationStarted(context.Background(), "doc1")).To(Succeed())
		Expect(r.EvidenceCollected(context.Background(), "doc1", 3)).To(Succeed())
		Expect(r.ClassificationCompleted(context.Background(), "doc1", domain.DecisionTrail{})).To(Succeed())

		Expect(store.events).To(HaveLen(3))
		Expect(store.events[0].EmissionSeq).To(Equal(int64(1)))
		Expect(store.events[1].EmissionSeq).To(Equal(int64(2)))
		Expect(store.events[2].EmissionSeq).To(Equal(int64(3)))
	})

	It("tags every event with the recorder's session id", func() {
		store := &fakeAppender{}
		r := NewRecorder(store, "session-xyz")
		Expect(r.ClassificationStarted(context.Background(), "doc1")).To(Succeed())
		Expect(store.events[0].SessionID).To(Equal("session-xyz"))
	})

	It("escalates a critical confidence warning's audit severity", func() {
		store := &fakeAppender{}
		r := NewRecorder(store, "session-1")
		Expect(r.ConfidenceWarning(context.Background(), "doc1", &domain.ConfidenceWarning{Level: domain.WarningCritical})).To(Succeed())
		Expect(store.events[0].Severity).To(Equal(domain.AuditCritical))
	})

	It("records classification_failed with the triggering error message", func() {
		store := &fakeAppender{}
		r := NewRecorder(store, "session-1")
		Expect(r.ClassificationFailed(context.Background(), "doc1", context.DeadlineExceeded)).To(Succeed())
		Expect(store.events[0].Error).NotTo(BeNil())
		Expect(store.events[0].Error.Message).To(ContainSubstring("deadline exceeded"))
	})
})
