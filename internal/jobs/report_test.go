package jobs

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/segmentio/kafka-go"
)

type fakeMessageWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeMessageWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return w.err
}

var _ = Describe("RunReporter", func() {

	It("produces the run result keyed by run id", func() {
		writer := &fakeMessageWriter{}
		reporter, err := NewRunReporter("kafka", func() (MessageWriter, error) { return writer, nil })
		Expect(err).NotTo(HaveOccurred())

		result := &RunResult{
			RunID:    "b6b0c0a4-3c1e-4a8e-9a57-1d2f0e7f0c11",
			Target:   "pdl1",
			Status:   true,
			Outcomes: map[string]map[Outcome]int{"get_contract": {OutcomeSuccess: 1}},
		}
		Expect(reporter.Report(context.Background(), result)).To(Succeed())

		Expect(writer.messages).To(HaveLen(1))
		message := writer.messages[0]
		Expect(string(message.Key)).To(Equal(result.RunID))
		Expect(message.Headers).To(ContainElement(kafka.Header{Key: "usage_point_id", Value: []byte("pdl1")}))

		var decoded map[string]interface{}
		Expect(json.Unmarshal(message.Value, &decoded)).To(Succeed())
		Expect(decoded).To(HaveKeyWithValue("status", true))
		Expect(decoded["outcomes"]).To(HaveKeyWithValue("get_contract", HaveKeyWithValue("success", BeNumerically("==", 1))))
	})

	It("returns write failures", func() {
		writer := &fakeMessageWriter{err: errors.New("leader not available")}
		reporter, _ := NewRunReporter("kafka", func() (MessageWriter, error) { return writer, nil })

		Expect(reporter.Report(context.Background(), &RunResult{RunID: "1"})).To(MatchError("leader not available"))
	})

	It("builds a fake reporter without kafka", func() {
		reporter, err := NewRunReporter("fake", func() (MessageWriter, error) {
			return nil, errors.New("must not be called")
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(reporter.Report(context.Background(), &RunResult{RunID: "1"})).To(Succeed())
	})

	It("rejects unknown implementations", func() {
		_, err := NewRunReporter("carrier-pigeon", nil)
		Expect(err).To(HaveOccurred())
	})
})
