package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quizparty/backend/internal/domain"
)

// Channels clients subscribe to for live updates, relative to the prefix.
const (
	channelSession = "session"
	channelResult  = "result"
)

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	SessionData struct {
		QuizID    string            `json:"quiz_id"`
		Expired   string            `json:"expired"`
		Options   map[string]string `json:"options"`
		Title     string            `json:"title"`
		HasWinner bool              `json:"has_winner"`
	}

	ResultData struct {
		QuizID     string `json:"quiz_id"`
		WinnerName string `json:"winner_name"`
		Winner     string `json:"winner"`
		AnswerTime string `json:"answer_time"`
		Answer     string `json:"answer"`
	}
)

// PublishGameStarted tells listening clients a new round is live.
func (a *API) PublishGameStarted(ctx context.Context, e domain.EventGameStarted) error {
	ss := e.Session

	return a.publishNotification(ctx, channelSession, e.Name(), SessionData{
		QuizID:    ss.QuizID,
		Expired:   ss.Expired.Format(time.RFC3339),
		Options:   ss.Options,
		Title:     ss.Title,
		HasWinner: ss.HasWinner,
	})
}

// PublishWinnerDeclared tells listening clients the round is decided.
func (a *API) PublishWinnerDeclared(ctx context.Context, e domain.EventWinnerDeclared) error {
	r := e.Result

	return a.publishNotification(ctx, channelResult, e.Name(), ResultData{
		QuizID:     r.QuizID,
		WinnerName: r.WinnerName,
		Winner:     r.Winner,
		AnswerTime: r.AnswerTime.Format(time.RFC3339),
		Answer:     r.Answer,
	})
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, fmt.Sprintf("%s:%s", a.prefix, channel), b).Err()
}
