// Package api exposes the two HTTP routes of the game and fans domain
// events out to Redis pubsub for listening clients.
package api

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/quizparty/backend/internal/auth"
	"github.com/quizparty/backend/internal/domain"
	"github.com/quizparty/backend/internal/errors"
	"github.com/quizparty/backend/internal/event"
	"github.com/quizparty/backend/internal/game"
	"github.com/quizparty/backend/internal/telemetry"
)

type Config struct {
	Engine       *gin.Engine
	EventBus     *event.Bus
	Game         *game.Service
	Verifier     auth.Verifier
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	game   *game.Service
	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		game:   c.Game,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	// Every route requires a verified credential.
	g := c.Engine.Group("/", auth.Middleware(c.Verifier))
	g.POST("/answer", a.SubmitAnswer)
	g.GET("/newgame", a.NewGame)

	c.EventBus.Subscribe(domain.EventNameGameStarted, func(ctx context.Context, e event.Event) error {
		return a.PublishGameStarted(ctx, e.(domain.EventGameStarted))
	})
	c.EventBus.Subscribe(domain.EventNameWinnerDeclared, func(ctx context.Context, e event.Event) error {
		return a.PublishWinnerDeclared(ctx, e.(domain.EventWinnerDeclared))
	})

	return a
}

type answerRequest struct {
	QuizID string `json:"quiz_id" form:"quiz_id"`
	Answer string `json:"answer" form:"answer"`
}

type answerResponse struct {
	Error   errors.Code `json:"error"`
	Message string      `json:"message"`
	// Your and Mime ride only on the wrong-answer response: the submitted
	// option id and the expected one. The field names are historical.
	Your string `json:"your,omitempty"`
	Mime string `json:"mime,omitempty"`
}

// SubmitAnswer handles POST /answer. Input presence is checked before any
// store access.
func (a *API) SubmitAnswer(c *gin.Context) {
	caller, ok := auth.IdentityFrom(c)
	if !ok {
		c.String(http.StatusForbidden, "Unauthorized")
		return
	}

	// A body that fails to bind leaves req zero-valued and is reported
	// through the missing-field codes below, same as an empty body.
	var req answerRequest
	_ = c.ShouldBind(&req)

	if req.QuizID == "" {
		c.JSON(http.StatusForbidden, answerResponse{
			Error:   errors.CodeMissingQuizID,
			Message: errors.CodeMissingQuizID.Message(),
		})
		return
	}

	if req.Answer == "" {
		c.JSON(http.StatusForbidden, answerResponse{
			Error:   errors.CodeMissingAnswer,
			Message: errors.CodeMissingAnswer.Message(),
		})
		return
	}

	resp, err := a.game.SubmitAnswer(c.Request.Context(), caller, game.SubmitAnswerRequest{
		QuizID: req.QuizID,
		Answer: req.Answer,
	})
	if err != nil {
		e := errors.Convert(err)
		telemetry.Answers.WithLabelValues("rejected").Inc()
		c.JSON(e.HTTPStatusCode(), answerResponse{
			Error:   e.Code,
			Message: e.Message,
		})
		return
	}

	if !resp.Winner {
		telemetry.Answers.WithLabelValues("wrong").Inc()
		c.JSON(http.StatusOK, answerResponse{
			Error:   errors.CodeWrongAnswer,
			Message: errors.CodeWrongAnswer.Message(),
			Your:    resp.Submitted,
			Mime:    resp.Expected,
		})
		return
	}

	telemetry.Answers.WithLabelValues("winner").Inc()
	c.JSON(http.StatusOK, answerResponse{
		Error:   errors.CodeOK,
		Message: errors.CodeOK.Message(),
	})
}

// NewGame handles GET /newgame. Success is a plain-text line, failures are
// plain-text 403s.
func (a *API) NewGame(c *gin.Context) {
	caller, ok := auth.IdentityFrom(c)
	if !ok {
		c.String(http.StatusForbidden, "Unauthorized")
		return
	}

	resp, err := a.game.NewGame(c.Request.Context(), caller)
	if stderrors.Is(err, game.ErrPermissionDenied) {
		c.String(http.StatusForbidden, "permission denied, admin only")
		return
	}
	if err != nil {
		c.String(http.StatusForbidden, err.Error())
		return
	}

	telemetry.GamesStarted.Inc()
	c.String(http.StatusOK, "New game assigned: %s", resp.QuizID)
}
