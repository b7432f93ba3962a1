package domain

const (
	EventNameGameStarted    = "game.started"
	EventNameWinnerDeclared = "winner.declared"
)

type EventGameStarted struct {
	Session Session
}

func (EventGameStarted) Name() string { return EventNameGameStarted }

type EventWinnerDeclared struct {
	Result Result
}

func (EventWinnerDeclared) Name() string { return EventNameWinnerDeclared }
