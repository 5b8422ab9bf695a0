package domain

import "time"

// AnswerCount is the number of answers in every Fastest Finger First question.
const AnswerCount = 4

// Question is one Fastest Finger First question: four answer texts and the
// canonical correct ordering, e.g. "CBAD". Immutable once loaded.
type Question struct {
	ID           string              `json:"id"`
	Text         string              `json:"text"`
	Answers      [AnswerCount]string `json:"answers"`
	CorrectOrder string              `json:"correctOrder"`
}

// ValidOrder reports whether s is a permutation over {A,B,C,D} with each
// letter appearing exactly once.
func ValidOrder(s string) bool {
	if len(s) != AnswerCount {
		return false
	}
	var seen [AnswerCount]bool
	for i := 0; i < len(s); i++ {
		idx := int(s[i]) - 'A'
		if idx < 0 || idx >= AnswerCount || seen[idx] {
			return false
		}
		seen[idx] = true
	}
	return true
}

// Participant is a connected remote player. The ID is opaque and stable for
// the connection lifetime; a participant who drops mid-round is marked
// inactive but never deleted, so submissions they already made keep an owner.
type Participant struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Active      bool      `json:"active"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// AnswerSubmission is one participant's submitted ordering, stamped with the
// server-observed receive instant and the round generation it belongs to.
type AnswerSubmission struct {
	ParticipantID string    `json:"participantId"`
	DisplayName   string    `json:"displayName"`
	Sequence      string    `json:"sequence"`
	SubmittedAt   time.Time `json:"submittedAt"`
	Round         int64     `json:"round"`
}

// RankingResult is one row of the computed ranking. Ranks are contiguous
// from 1 over correct-then-incorrect submissions.
type RankingResult struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Sequence      string `json:"sequence"`
	TimeElapsedMs int64  `json:"timeElapsedMs"`
	Correct       bool   `json:"correct"`
}

// RoundOutcome is the result of confirming a winner.
type RoundOutcome struct {
	NoWinner   bool           `json:"noWinner"`
	Winner     *RankingResult `json:"winner,omitempty"`
	CorrectIDs []string       `json:"correctIds,omitempty"`
}

// RoundView is a read-only snapshot of the live round, safe to hand to UI
// and observers.
type RoundView struct {
	Phase        Phase           `json:"phase"`
	RoundID      string          `json:"roundId"`
	Generation   int64           `json:"generation"`
	QuestionID   string          `json:"questionId,omitempty"`
	QuestionText string          `json:"questionText,omitempty"`
	Participants int             `json:"participants"`
	Submissions  int             `json:"submissions"`
	RevealCount  int             `json:"revealCount"`
	RemainingSec int             `json:"remainingSec"`
	Rankings     []RankingResult `json:"rankings,omitempty"`
}
