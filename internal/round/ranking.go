package round

import (
	"sort"
	"time"

	"fff-console/internal/domain"
)

// Rank orders submissions for the on-air reveal: every correct submission
// outranks every incorrect one regardless of timing, each partition is
// ordered ascending by elapsed time, and ties keep ledger append order so
// re-running the same inputs is reproducible. Ranks are contiguous from 1.
//
// Pure over its inputs; an empty ledger yields an empty (non-nil) result,
// which downstream logic treats as "no winner", not as an error.
func Rank(subs []domain.AnswerSubmission, correctOrder string, startedAt time.Time) []domain.RankingResult {
	correct := make([]domain.RankingResult, 0, len(subs))
	incorrect := make([]domain.RankingResult, 0, len(subs))

	for _, sub := range subs {
		result := domain.RankingResult{
			ParticipantID: sub.ParticipantID,
			DisplayName:   sub.DisplayName,
			Sequence:      sub.Sequence,
			TimeElapsedMs: sub.SubmittedAt.Sub(startedAt).Milliseconds(),
			Correct:       sub.Sequence == correctOrder,
		}
		if result.Correct {
			correct = append(correct, result)
		} else {
			incorrect = append(incorrect, result)
		}
	}

	byElapsed := func(results []domain.RankingResult) func(i, j int) bool {
		return func(i, j int) bool {
			return results[i].TimeElapsedMs < results[j].TimeElapsedMs
		}
	}
	sort.SliceStable(correct, byElapsed(correct))
	sort.SliceStable(incorrect, byElapsed(incorrect))

	ranked := append(correct, incorrect...)
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// CorrectCount counts the correct rows of a materialized ranking.
func CorrectCount(ranked []domain.RankingResult) int {
	n := 0
	for _, r := range ranked {
		if r.Correct {
			n++
		}
	}
	return n
}
