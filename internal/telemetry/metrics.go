package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GamesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_games_started_total",
		Help: "Number of rounds assigned through /newgame.",
	})

	// Answers counts submissions by outcome: winner, wrong, rejected.
	Answers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_answers_total",
		Help: "Number of answer submissions by outcome.",
	}, []string{"outcome"})
)
