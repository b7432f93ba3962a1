package domain

import "time"

// Quiz is one question document in the quiz collection.
type Quiz struct {
	QuizID   string
	Question string
	Options  []Option
	// Answer is the id of the correct option.
	Answer string
	// Played counts how many rounds have used this quiz.
	Played int
}

type Option struct {
	ID   string
	Text string
}

// OptionText returns the display text of the option with the given id,
// or the empty string when no option matches.
func (q Quiz) OptionText(id string) string {
	for _, o := range q.Options {
		if o.ID == id {
			return o.Text
		}
	}

	return ""
}

// OptionMap flattens the option list into an id to text mapping.
func (q Quiz) OptionMap() map[string]string {
	m := make(map[string]string, len(q.Options))
	for _, o := range q.Options {
		m[o.ID] = o.Text
	}

	return m
}

// Session is the singleton record describing the currently live round.
// Creating a new round overwrites it, which closes the previous round.
type Session struct {
	QuizID    string
	Expired   time.Time
	Options   map[string]string
	Title     string
	HasWinner bool
}

// Result is the singleton record describing the last declared winner.
type Result struct {
	QuizID     string
	WinnerName string
	Winner     string
	AnswerTime time.Time
	Answer     string
}
