package domain

// Phase is a named stage in the round's on-air narrative. It gates which host
// triggers are legal at any moment.
type Phase string

const (
	PhaseNotStarted       Phase = "NOT_STARTED"
	PhaseIntroPlaying     Phase = "INTRO_PLAYING"
	PhaseQuestionReady    Phase = "QUESTION_READY"
	PhaseQuestionShown    Phase = "QUESTION_SHOWN"
	PhaseAnswersRevealed  Phase = "ANSWERS_REVEALED"
	PhaseTimerExpired     Phase = "TIMER_EXPIRED"
	PhaseRevealingCorrect Phase = "REVEALING_CORRECT"
	PhaseWinnersShown     Phase = "WINNERS_SHOWN"
	PhaseWinnerAnnounced  Phase = "WINNER_ANNOUNCED"
	PhaseComplete         Phase = "COMPLETE"
)

// Trigger is a host- or timer-initiated action against the round flow.
type Trigger string

const (
	TriggerStartIntro    Trigger = "StartIntro"
	TriggerShowQuestion  Trigger = "ShowQuestion"
	TriggerRevealAnswers Trigger = "RevealAnswers"
	TriggerTimerElapsed  Trigger = "TimerElapsed"
	TriggerRevealCorrect Trigger = "RevealCorrect"
	TriggerConfirmWinner Trigger = "ConfirmWinner"
	TriggerEndRound      Trigger = "EndRound"
	TriggerAbort         Trigger = "Abort"
)

// allowedTriggers is the declarative transition gate: which triggers are
// legal in each phase. Effects and target phases live in the flow; this
// table only answers "can this happen now".
var allowedTriggers = map[Phase][]Trigger{
	PhaseNotStarted:       {TriggerStartIntro},
	PhaseIntroPlaying:     {TriggerAbort},
	PhaseQuestionReady:    {TriggerShowQuestion, TriggerAbort},
	PhaseQuestionShown:    {TriggerRevealAnswers, TriggerAbort},
	PhaseAnswersRevealed:  {TriggerTimerElapsed, TriggerAbort},
	PhaseTimerExpired:     {TriggerRevealCorrect, TriggerAbort},
	PhaseRevealingCorrect: {TriggerRevealCorrect, TriggerConfirmWinner, TriggerAbort},
	PhaseWinnersShown:     {TriggerConfirmWinner, TriggerAbort},
	PhaseWinnerAnnounced:  {TriggerEndRound, TriggerAbort},
	PhaseComplete:         {TriggerStartIntro},
}

// Allows reports whether the trigger is legal in this phase.
func (p Phase) Allows(t Trigger) bool {
	for _, allowed := range allowedTriggers[p] {
		if allowed == t {
			return true
		}
	}
	return false
}

func (p Phase) String() string {
	return string(p)
}
