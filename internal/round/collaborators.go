package round

import (
	"context"

	"fff-console/internal/domain"
)

// PhaseTag labels a broadcast phase message sent to all remote participants.
type PhaseTag string

const (
	PhaseTagQuestion        PhaseTag = "Question"
	PhaseTagTimer           PhaseTag = "Timer"
	PhaseTagTimerExpired    PhaseTag = "TimerExpired"
	PhaseTagRevealingWinner PhaseTag = "RevealingWinner"
	PhaseTagNoWinner        PhaseTag = "NoWinner"
	PhaseTagWinnerConfirmed PhaseTag = "WinnerConfirmed"
	PhaseTagResetToLobby    PhaseTag = "ResetToLobby"
)

// StartQuestionMessage opens a round for remote clients: it carries the
// answers and the time limit, and the round identifiers clients must echo
// back on their submissions.
type StartQuestionMessage struct {
	RoundID          string                     `json:"roundId"`
	Generation       int64                      `json:"generation"`
	QuestionID       string                     `json:"questionId"`
	Text             string                     `json:"text"`
	Answers          [domain.AnswerCount]string `json:"answers"`
	TimeLimitSeconds int                        `json:"timeLimitSeconds"`
}

// QuestionPayload announces the question text before answers are revealed.
// It deliberately carries no generation: clients learn the generation to echo
// only from StartQuestionMessage, so nothing can be submitted before the
// countdown starts.
type QuestionPayload struct {
	RoundID string `json:"roundId"`
	Text    string `json:"text"`
}

// TimerPayload carries the remaining time pushed to clients at the display
// cadence. The server-side expiry check stays authoritative.
type TimerPayload struct {
	RemainingSec int `json:"remainingSec"`
}

// WinnerConfirmedPayload names the winner and every correct participant.
type WinnerConfirmedPayload struct {
	WinnerID   string   `json:"winnerId"`
	WinnerName string   `json:"winnerName"`
	CorrectIDs []string `json:"correctIds"`
}

// Broadcaster is the transport gateway the flow publishes through. All calls
// are best-effort: a failure degrades the round to host-only mode, it never
// stops the local state machine.
type Broadcaster interface {
	StartQuestion(msg StartQuestionMessage) error
	EndQuestion() error
	BroadcastPhase(tag PhaseTag, payload any) error
}

// ScreenPresenter drives the studio screens. Implementations must tolerate
// calls from both the flow's control context and the timer's tick context.
type ScreenPresenter interface {
	ShowQuestionText(text string)
	ShowAnswerLetter(letter byte, text string)
	RemoveAnswerLetter(letter byte)
	ShowTimer(secondsRemaining int)
	ShowContestantStrap(rank int, name string, timeSeconds float64)
	HighlightContestant(rank int, isWinner bool)
	ShowWinner(name string, timeSeconds float64)
	ClearDisplay()
}

// CueID identifies an audio cue in the show's cue sheet.
type CueID string

const (
	CueIntro         CueID = "fff_intro"
	CueAnswersReveal CueID = "fff_answers"
	CueTimeUp        CueID = "fff_time_up"
	CueCorrectReveal CueID = "fff_correct"
	CueWinner        CueID = "fff_winner"
	CueNoWinner      CueID = "fff_no_winner"
)

// AudioCues plays show audio. IsBusy and PendingCount back the polling wait
// the flow uses to detect cue completion.
type AudioCues interface {
	PlayCue(id CueID)
	IsBusy() bool
	PendingCount() int
	StopAll()
}

// CatalogRepository loads the question bank (cached, from DB, or static).
type CatalogRepository interface {
	GetCatalog(ctx context.Context) ([]domain.Question, error)
}
