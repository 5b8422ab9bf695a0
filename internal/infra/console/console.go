// Package console provides log-backed stand-ins for the studio screen and
// audio rack, so the service runs end to end without broadcast hardware.
package console

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"fff-console/internal/round"
)

// Screen logs every presenter call instead of painting hardware screens.
type Screen struct{}

func NewScreen() *Screen {
	return &Screen{}
}

func (s *Screen) ShowQuestionText(text string) {
	log.Info().Str("screen", "question").Str("text", text).Msg("screen update")
}

func (s *Screen) ShowAnswerLetter(letter byte, text string) {
	log.Info().Str("screen", "answer").Str("letter", string(letter)).Str("text", text).Msg("screen update")
}

func (s *Screen) RemoveAnswerLetter(letter byte) {
	log.Info().Str("screen", "answer").Str("letter", string(letter)).Msg("screen cleared")
}

func (s *Screen) ShowTimer(secondsRemaining int) {
	log.Debug().Str("screen", "timer").Int("seconds", secondsRemaining).Msg("screen update")
}

func (s *Screen) ShowContestantStrap(rank int, name string, timeSeconds float64) {
	log.Info().Str("screen", "strap").Int("rank", rank).Str("name", name).Float64("time_sec", timeSeconds).Msg("screen update")
}

func (s *Screen) HighlightContestant(rank int, isWinner bool) {
	log.Info().Str("screen", "strap").Int("rank", rank).Bool("winner", isWinner).Msg("screen update")
}

func (s *Screen) ShowWinner(name string, timeSeconds float64) {
	log.Info().Str("screen", "winner").Str("name", name).Float64("time_sec", timeSeconds).Msg("screen update")
}

func (s *Screen) ClearDisplay() {
	log.Debug().Str("screen", "all").Msg("screen cleared")
}

// cueLengths approximates how long each show cue plays, so the coordinator's
// busy polling has something real to wait on.
var cueLengths = map[round.CueID]time.Duration{
	round.CueIntro:         4 * time.Second,
	round.CueAnswersReveal: 2 * time.Second,
	round.CueTimeUp:        2 * time.Second,
	round.CueCorrectReveal: time.Second,
	round.CueWinner:        3 * time.Second,
	round.CueNoWinner:      2 * time.Second,
}

// Audio simulates the cue player: PlayCue marks the rack busy for the cue's
// length on the injected clock, and a cue played while another is still
// running queues behind it.
type Audio struct {
	clock clockwork.Clock

	mu        sync.Mutex
	starts    []time.Time
	busyUntil time.Time
}

func NewAudio(clock clockwork.Clock) *Audio {
	return &Audio{clock: clock}
}

func (a *Audio) PlayCue(id round.CueID) {
	length, ok := cueLengths[id]
	if !ok {
		length = time.Second
	}
	a.mu.Lock()
	start := a.clock.Now()
	if a.busyUntil.After(start) {
		start = a.busyUntil
	}
	a.starts = append(a.starts, start)
	a.busyUntil = start.Add(length)
	a.mu.Unlock()
	log.Info().Str("cue", string(id)).Dur("length", length).Msg("audio cue")
}

func (a *Audio) IsBusy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clock.Now().Before(a.busyUntil)
}

// PendingCount reports the cues queued behind the one currently playing.
func (a *Audio) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.clock.Now()
	kept := a.starts[:0]
	for _, s := range a.starts {
		if s.After(now) {
			kept = append(kept, s)
		}
	}
	a.starts = kept
	return len(kept)
}

func (a *Audio) StopAll() {
	a.mu.Lock()
	a.starts = nil
	a.busyUntil = time.Time{}
	a.mu.Unlock()
	log.Info().Msg("audio stopped")
}
