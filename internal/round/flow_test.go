package round

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"fff-console/internal/domain"
)

type stubCatalog struct {
	questions []domain.Question
	err       error
}

func (c *stubCatalog) GetCatalog(context.Context) ([]domain.Question, error) {
	return c.questions, c.err
}

type stubBroadcaster struct {
	mu       sync.Mutex
	fail     bool
	started  []StartQuestionMessage
	tags     []PhaseTag
	payloads map[PhaseTag]any
	ends     int
}

func newStubBroadcaster() *stubBroadcaster {
	return &stubBroadcaster{payloads: make(map[PhaseTag]any)}
}

func (b *stubBroadcaster) StartQuestion(msg StartQuestionMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("transport down")
	}
	b.started = append(b.started, msg)
	return nil
}

func (b *stubBroadcaster) EndQuestion() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("transport down")
	}
	b.ends++
	return nil
}

func (b *stubBroadcaster) BroadcastPhase(tag PhaseTag, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("transport down")
	}
	b.tags = append(b.tags, tag)
	b.payloads[tag] = payload
	return nil
}

func (b *stubBroadcaster) lastStarted(t *testing.T) StartQuestionMessage {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.started) == 0 {
		t.Fatalf("no StartQuestion broadcast recorded")
	}
	return b.started[len(b.started)-1]
}

func (b *stubBroadcaster) sawTag(tag PhaseTag) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, seen := range b.tags {
		if seen == tag {
			return true
		}
	}
	return false
}

type stubScreen struct{}

func (stubScreen) ShowQuestionText(string) {}
func (stubScreen) ShowAnswerLetter(byte, string) {}
func (stubScreen) RemoveAnswerLetter(byte) {}
func (stubScreen) ShowTimer(int) {}
func (stubScreen) ShowContestantStrap(int, string, float64) {}
func (stubScreen) HighlightContestant(int, bool) {}
func (stubScreen) ShowWinner(string, float64) {}
func (stubScreen) ClearDisplay() {}

type stubAudio struct {
	mu   sync.Mutex
	busy bool
}

func (a *stubAudio) PlayCue(CueID) {}
func (a *stubAudio) IsBusy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.busy
}
func (a *stubAudio) PendingCount() int { return 0 }
func (a *stubAudio) StopAll() {
	a.setBusy(false)
}
func (a *stubAudio) setBusy(busy bool) {
	a.mu.Lock()
	a.busy = busy
	a.mu.Unlock()
}

func testQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:           "q1",
			Text:         "Order these roman numerals, smallest first.",
			Answers:      [domain.AnswerCount]string{"X", "I", "C", "L"},
			CorrectOrder: "CBAD",
		},
	}
}

type flowFixture struct {
	flow        *Flow
	clock       *clockwork.FakeClock
	broadcaster *stubBroadcaster
	audio       *stubAudio
}

func newFlowFixture(t *testing.T, questions []domain.Question) *flowFixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	broadcaster := newStubBroadcaster()
	audio := &stubAudio{}
	flow := NewFlow(
		Config{Duration: 20 * time.Second, Cadence: 100 * time.Millisecond},
		clock,
		&stubCatalog{questions: questions},
		NewRegistry(),
		NewLedger(),
		broadcaster,
		stubScreen{},
		audio,
	)
	return &flowFixture{flow: flow, clock: clock, broadcaster: broadcaster, audio: audio}
}

// openRound drives NotStarted through AnswersRevealed and returns the live
// generation clients would echo.
func (fx *flowFixture) openRound(t *testing.T) int64 {
	t.Helper()
	if err := fx.flow.StartIntro(context.Background()); err != nil {
		t.Fatalf("start intro: %v", err)
	}
	if got := fx.flow.Phase(); got != domain.PhaseQuestionReady {
		t.Fatalf("expected QuestionReady after idle intro cue, got %s", got)
	}
	if err := fx.flow.ShowQuestion(); err != nil {
		t.Fatalf("show question: %v", err)
	}
	if err := fx.flow.RevealAnswers(); err != nil {
		t.Fatalf("reveal answers: %v", err)
	}
	return fx.broadcaster.lastStarted(t).Generation
}

func (fx *flowFixture) revealAll(t *testing.T) {
	t.Helper()
	for i := 0; i < domain.AnswerCount; i++ {
		if err := fx.flow.RevealCorrect(); err != nil {
			t.Fatalf("reveal %d: %v", i+1, err)
		}
	}
}

func waitForPhase(t *testing.T, flow *Flow, want domain.Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if flow.Phase() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for phase %s, still %s", want, flow.Phase())
}

func TestShowQuestionFromNotStartedIsGuardViolation(t *testing.T) {
	fx := newFlowFixture(t, testQuestions())

	err := fx.flow.ShowQuestion()
	if !errors.Is(err, domain.ErrGuardViolation) {
		t.Fatalf("expected guard violation, got %v", err)
	}
	if fx.flow.Phase() != domain.PhaseNotStarted {
		t.Fatalf("state changed on rejected trigger: %s", fx.flow.Phase())
	}
}

func TestStartIntroFailsClosedWithoutParticipants(t *testing.T) {
	fx := newFlowFixture(t, testQuestions())

	err := fx.flow.StartIntro(context.Background())
	if !errors.Is(err, domain.ErrGuardViolation) || !errors.Is(err, domain.ErrNoParticipants) {
		t.Fatalf("expected no-participants guard violation, got %v", err)
	}
	if fx.flow.Phase() != domain.PhaseNotStarted {
		t.Fatalf("state changed on blocked start: %s", fx.flow.Phase())
	}
}

func TestStartIntroFailsClosedOnEmptyCatalog(t *testing.T) {
	fx := newFlowFixture(t, nil)
	fx.flow.Registry().Join("u1", "Alice")

	err := fx.flow.StartIntro(context.Background())
	if !errors.Is(err, domain.ErrEmptyCatalog) {
		t.Fatalf("expected empty catalog error, got %v", err)
	}
}

func TestIntroCuePollingAdvancesWhenCueFinishes(t *testing.T) {
	fx := newFlowFixture(t, testQuestions())
	fx.flow.Registry().Join("u1", "Alice")
	fx.audio.setBusy(true)

	if err := fx.flow.StartIntro(context.Background()); err != nil {
		t.Fatalf("start intro: %v", err)
	}
	if fx.flow.Phase() != domain.PhaseIntroPlaying {
		t.Fatalf("expected IntroPlaying while cue busy, got %s", fx.flow.Phase())
	}

	fx.audio.setBusy(false)
	fx.clock.BlockUntil(1)
	fx.clock.Advance(100 * time.Millisecond)
	waitForPhase(t, fx.flow, domain.PhaseQuestionReady)
}

func TestFullRoundProducesWinner(t *testing.T) {
	fx := newFlowFixture(t, testQuestions())
	fx.flow.Registry().Join("alice", "Alice")
	fx.flow.Registry().Join("bob", "Bob")
	fx.flow.Registry().Join("carol", "Carol")

	generation := fx.openRound(t)
	started := fx.broadcaster.lastStarted(t)
	if started.TimeLimitSeconds != 20 {
		t.Fatalf("expected 20s limit on the wire, got %d", started.TimeLimitSeconds)
	}

	fx.clock.Advance(time.Second)
	if err := fx.flow.Submit("carol", "Carol", "ABCD", generation); err != nil {
		t.Fatalf("carol submit: %v", err)
	}
	fx.clock.Advance(2 * time.Second)
	if err := fx.flow.Submit("bob", "Bob", "CBAD", generation); err != nil {
		t.Fatalf("bob submit: %v", err)
	}
	fx.clock.Advance(2 * time.Second)
	if err := fx.flow.Submit("alice", "Alice", "CBAD", generation); err != nil {
		t.Fatalf("alice submit: %v", err)
	}

	fx.flow.onExpire()
	if fx.flow.Phase() != domain.PhaseTimerExpired {
		t.Fatalf("expected TimerExpired, got %s", fx.flow.Phase())
	}
	if !fx.broadcaster.sawTag(PhaseTagTimerExpired) {
		t.Fatalf("expiry not broadcast")
	}

	// Confirming before the full reveal is a wrong click.
	for i := 0; i < domain.AnswerCount-1; i++ {
		if err := fx.flow.RevealCorrect(); err != nil {
			t.Fatalf("reveal %d: %v", i+1, err)
		}
	}
	if _, err := fx.flow.ConfirmWinner(); !errors.Is(err, domain.ErrGuardViolation) {
		t.Fatalf("expected guard violation before 4th reveal, got %v", err)
	}
	if err := fx.flow.RevealCorrect(); err != nil {
		t.Fatalf("final reveal: %v", err)
	}
	if fx.flow.Phase() != domain.PhaseWinnersShown {
		t.Fatalf("two correct answers should show winners, got %s", fx.flow.Phase())
	}

	outcome, err := fx.flow.ConfirmWinner()
	if err != nil {
		t.Fatalf("confirm winner: %v", err)
	}
	if outcome.NoWinner || outcome.Winner == nil {
		t.Fatalf("expected a winner, got %+v", outcome)
	}
	if outcome.Winner.ParticipantID != "bob" || outcome.Winner.TimeElapsedMs != 3000 {
		t.Fatalf("expected bob at 3000ms, got %+v", outcome.Winner)
	}
	if len(outcome.CorrectIDs) != 2 {
		t.Fatalf("expected 2 correct participants, got %v", outcome.CorrectIDs)
	}
	if !fx.broadcaster.sawTag(PhaseTagWinnerConfirmed) {
		t.Fatalf("winner not broadcast")
	}

	if err := fx.flow.EndRound(); err != nil {
		t.Fatalf("end round: %v", err)
	}
	if fx.flow.Phase() != domain.PhaseComplete {
		t.Fatalf("expected Complete, got %s", fx.flow.Phase())
	}
}

func TestRankingIsMaterializedOnceOnly(t *testing.T) {
	fx := newFlowFixture(t, testQuestions())
	fx.flow.Registry().Join("alice", "Alice")
	fx.flow.Registry().Join("bob", "Bob")

	generation := fx.openRound(t)
	fx.clock.Advance(time.Second)
	if err := fx.flow.Submit("alice", "Alice", "CBAD", generation); err != nil {
		t.Fatalf("submit: %v", err)
	}

	fx.flow.onExpire()
	fx.revealAll(t)

	// A straggler arriving after expiry is rejected and never changes the
	// ranking.
	fx.clock.Advance(time.Second)
	if err := fx.flow.Submit("bob", "Bob", "CBAD", generation); !errors.Is(err, domain.ErrStaleRound) {
		t.Fatalf("expected post-expiry rejection, got %v", err)
	}

	outcome, err := fx.flow.ConfirmWinner()
	if err != nil {
		t.Fatalf("confirm winner: %v", err)
	}
	if outcome.Winner == nil || outcome.Winner.ParticipantID != "alice" {
		t.Fatalf("expected alice to win, got %+v", outcome)
	}
	if len(outcome.CorrectIDs) != 1 {
		t.Fatalf("late submission leaked into ranking: %v", outcome.CorrectIDs)
	}
}

func TestSubmissionBeforeCountdownIsRejected(t *testing.T) {
	fx := newFlowFixture(t, testQuestions())
	fx.flow.Registry().Join("alice", "Alice")
	fx.flow.Registry().Join("mallory", "Mallory")

	if err := fx.flow.StartIntro(context.Background()); err != nil {
		t.Fatalf("start intro: %v", err)
	}
	if err := fx.flow.ShowQuestion(); err != nil {
		t.Fatalf("show question: %v", err)
	}

	// The question is on screen but the countdown has not started. A client
	// guessing the live generation must not get onto the record: a head
	// start here would rank with a negative elapsed time.
	err := fx.flow.Submit("mallory", "Mallory", "CBAD", 1)
	if !errors.Is(err, domain.ErrStaleRound) {
		t.Fatalf("expected rejection before countdown start, got %v", err)
	}

	fx.clock.Advance(5 * time.Second)
	if err := fx.flow.RevealAnswers(); err != nil {
		t.Fatalf("reveal answers: %v", err)
	}
	generation := fx.broadcaster.lastStarted(t).Generation
	fx.clock.Advance(time.Second)
	if err := fx.flow.Submit("alice", "Alice", "CBAD", generation); err != nil {
		t.Fatalf("alice submit: %v", err)
	}

	fx.flow.onExpire()
	fx.revealAll(t)
	outcome, err := fx.flow.ConfirmWinner()
	if err != nil {
		t.Fatalf("confirm winner: %v", err)
	}
	if outcome.Winner == nil || outcome.Winner.ParticipantID != "alice" {
		t.Fatalf("expected alice to win, got %+v", outcome)
	}
	if outcome.Winner.TimeElapsedMs != 1000 {
		t.Fatalf("expected 1000ms elapsed, got %dms", outcome.Winner.TimeElapsedMs)
	}
}

func TestNoSubmissionsYieldsNoWinnerAndRetry(t *testing.T) {
	fx := newFlowFixture(t, testQuestions())
	fx.flow.Registry().Join("alice", "Alice")

	firstGeneration := fx.openRound(t)
	fx.flow.onExpire()
	fx.revealAll(t)

	outcome, err := fx.flow.ConfirmWinner()
	if err != nil {
		t.Fatalf("confirm winner: %v", err)
	}
	if !outcome.NoWinner {
		t.Fatalf("expected no-winner outcome, got %+v", outcome)
	}
	if !fx.broadcaster.sawTag(PhaseTagNoWinner) {
		t.Fatalf("no-winner not broadcast")
	}
	if fx.flow.Phase() != domain.PhaseQuestionReady {
		t.Fatalf("expected retry path back to QuestionReady, got %s", fx.flow.Phase())
	}

	// Retry: the next question starts from a clean ledger, and anything
	// still tagged with the old generation is discarded.
	if err := fx.flow.ShowQuestion(); err != nil {
		t.Fatalf("retry show question: %v", err)
	}
	if fx.flow.Ledger().Count() != 0 {
		t.Fatalf("ledger not cleared on retry, count=%d", fx.flow.Ledger().Count())
	}
	err = fx.flow.Submit("alice", "Alice", "CBAD", firstGeneration)
	if !errors.Is(err, domain.ErrStaleRound) {
		t.Fatalf("expected stale round rejection, got %v", err)
	}
	if fx.flow.Ledger().Count() != 0 {
		t.Fatalf("stale submission applied to new round")
	}
}

func TestAllIncorrectSkipsWinnersScreen(t *testing.T) {
	fx := newFlowFixture(t, testQuestions())
	fx.flow.Registry().Join("alice", "Alice")

	generation := fx.openRound(t)
	fx.clock.Advance(time.Second)
	_ = fx.flow.Submit("alice", "Alice", "DCBA", generation)

	fx.flow.onExpire()
	fx.revealAll(t)
	if fx.flow.Phase() != domain.PhaseRevealingCorrect {
		t.Fatalf("zero/one correct must skip the winners screen, got %s", fx.flow.Phase())
	}

	outcome, err := fx.flow.ConfirmWinner()
	if err != nil {
		t.Fatalf("confirm winner: %v", err)
	}
	if !outcome.NoWinner {
		t.Fatalf("all-incorrect round must be a no-winner, got %+v", outcome)
	}
}

func TestTransportFailureDegradesToHostOnly(t *testing.T) {
	fx := newFlowFixture(t, testQuestions())
	fx.flow.Registry().Join("alice", "Alice")
	fx.broadcaster.fail = true

	if err := fx.flow.StartIntro(context.Background()); err != nil {
		t.Fatalf("start intro: %v", err)
	}
	if err := fx.flow.ShowQuestion(); err != nil {
		t.Fatalf("show question must not fail on transport: %v", err)
	}
	if err := fx.flow.RevealAnswers(); err != nil {
		t.Fatalf("reveal answers must not fail on transport: %v", err)
	}
	if fx.flow.Phase() != domain.PhaseAnswersRevealed {
		t.Fatalf("transition must complete locally, got %s", fx.flow.Phase())
	}
}

func TestAbortStopsRound(t *testing.T) {
	fx := newFlowFixture(t, testQuestions())
	fx.flow.Registry().Join("alice", "Alice")

	fx.openRound(t)
	if err := fx.flow.Abort(); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if fx.flow.Phase() != domain.PhaseNotStarted {
		t.Fatalf("expected NotStarted after abort, got %s", fx.flow.Phase())
	}

	// A late expiry from the stopped timer must not resurrect the round.
	fx.flow.onExpire()
	if fx.flow.Phase() != domain.PhaseNotStarted {
		t.Fatalf("expiry after abort changed state: %s", fx.flow.Phase())
	}
}

func TestDuplicateSubmissionFirstWins(t *testing.T) {
	fx := newFlowFixture(t, testQuestions())
	fx.flow.Registry().Join("alice", "Alice")

	generation := fx.openRound(t)
	fx.clock.Advance(time.Second)
	if err := fx.flow.Submit("alice", "Alice", "CBAD", generation); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	fx.clock.Advance(time.Second)
	err := fx.flow.Submit("alice", "Alice", "DCBA", generation)
	if !errors.Is(err, domain.ErrDuplicateSubmission) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}

	fx.flow.onExpire()
	fx.revealAll(t)
	outcome, err := fx.flow.ConfirmWinner()
	if err != nil {
		t.Fatalf("confirm winner: %v", err)
	}
	if outcome.Winner == nil || outcome.Winner.Sequence != "CBAD" || outcome.Winner.TimeElapsedMs != 1000 {
		t.Fatalf("first submission must win, got %+v", outcome.Winner)
	}
}
