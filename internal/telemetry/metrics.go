package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kamlaman/trivia/internal/domain"
)

var (
	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trivia_messages_received_total",
		Help: "Inbound chat messages received from the transport.",
	})

	MessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trivia_messages_dropped_total",
		Help: "Inbound chat messages dropped because no round was active.",
	})

	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trivia_submissions_total",
		Help: "Submissions recorded against a round, by outcome.",
	}, []string{"outcome"})

	Winners = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trivia_winners_total",
		Help: "Submissions counted as ranked winners.",
	})

	RoundsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trivia_rounds_opened_total",
		Help: "Rounds opened.",
	})

	RoundsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trivia_rounds_completed_total",
		Help: "Rounds that reached their terminal state.",
	})
)

// ObserveSubmission classifies one recorded submission.
func ObserveSubmission(sub domain.Submission) {
	switch {
	case sub.CountedWinner:
		Submissions.WithLabelValues("winner").Inc()
		Winners.Inc()
	case sub.Correct && !sub.ValidWindow:
		Submissions.WithLabelValues("late").Inc()
	case sub.Correct:
		Submissions.WithLabelValues("uncounted").Inc()
	default:
		Submissions.WithLabelValues("incorrect").Inc()
	}
}
