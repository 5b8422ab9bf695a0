package round

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"fff-console/internal/domain"
)

// Config holds the round pacing knobs.
type Config struct {
	// Duration is the answering countdown. Defaults to 20s.
	Duration time.Duration
	// Cadence is the display tick for timer updates and cue polling.
	// Defaults to 100ms.
	Cadence time.Duration
}

func (c Config) withDefaults() Config {
	if c.Duration <= 0 {
		c.Duration = 20 * time.Second
	}
	if c.Cadence <= 0 {
		c.Cadence = 100 * time.Millisecond
	}
	return c
}

// Flow is the round coordinator: the single owner of the round state. Host
// triggers and the timer callback serialize on its mutex; submission
// ingestion synchronizes only through the ledger and never touches the rest
// of the round state.
type Flow struct {
	cfg       Config
	clock     clockwork.Clock
	catalog   CatalogRepository
	registry  *Registry
	ledger    *Ledger
	transport Broadcaster
	screen    ScreenPresenter
	audio     AudioCues
	timer     *Timer
	rnd       *rand.Rand

	mu          sync.Mutex
	phase       domain.Phase
	questions   []domain.Question
	used        map[string]struct{}
	current     *domain.Question
	roundID     string
	generation  int64
	startedAt   time.Time
	revealCount int
	rankings    []domain.RankingResult
	ranked      bool
}

func NewFlow(cfg Config, clock clockwork.Clock, catalog CatalogRepository, registry *Registry, ledger *Ledger, transport Broadcaster, screen ScreenPresenter, audio AudioCues) *Flow {
	cfg = cfg.withDefaults()
	return &Flow{
		cfg:       cfg,
		clock:     clock,
		catalog:   catalog,
		registry:  registry,
		ledger:    ledger,
		transport: transport,
		screen:    screen,
		audio:     audio,
		timer:     NewTimer(clock, cfg.Duration, cfg.Cadence),
		rnd:       rand.New(rand.NewSource(clock.Now().UnixNano())),
		phase:     domain.PhaseNotStarted,
		used:      make(map[string]struct{}),
	}
}

// Registry exposes the participant registry for the transport layer.
func (f *Flow) Registry() *Registry {
	return f.registry
}

// Ledger exposes the submission ledger (read paths only outside the flow).
func (f *Flow) Ledger() *Ledger {
	return f.ledger
}

// StartIntro begins the round: intro cue, phase IntroPlaying, and a watcher
// that advances to QuestionReady once the cue finishes. Fails closed when the
// catalog is empty or nobody is connected; the host retries explicitly.
func (f *Flow) StartIntro(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guard(domain.TriggerStartIntro); err != nil {
		return err
	}
	if err := f.loadCatalogLocked(ctx); err != nil {
		return err
	}
	if f.registry.ActiveCount() < 1 {
		return fmt.Errorf("%w: %w", domain.ErrGuardViolation, domain.ErrNoParticipants)
	}

	f.screen.ClearDisplay()
	f.audio.PlayCue(CueIntro)
	f.setPhaseLocked(domain.PhaseIntroPlaying)

	if f.cueFinished() {
		f.setPhaseLocked(domain.PhaseQuestionReady)
		return nil
	}
	go f.watchIntroCue()
	return nil
}

// watchIntroCue polls the audio player at the display cadence until the intro
// cue finishes, then signals readiness. Polling adds up to one cadence of
// phase latency, which is acceptable for on-air pacing.
func (f *Flow) watchIntroCue() {
	ticker := f.clock.NewTicker(f.cfg.Cadence)
	defer ticker.Stop()

	for range ticker.Chan() {
		f.mu.Lock()
		if f.phase != domain.PhaseIntroPlaying {
			f.mu.Unlock()
			return
		}
		if f.cueFinished() {
			f.setPhaseLocked(domain.PhaseQuestionReady)
			f.mu.Unlock()
			return
		}
		f.mu.Unlock()
	}
}

// cueFinished reports that nothing is playing and nothing is queued behind it.
func (f *Flow) cueFinished() bool {
	return !f.audio.IsBusy() && f.audio.PendingCount() == 0
}

// ShowQuestion picks a uniformly random unused question, clears the ledger
// under a fresh generation, and broadcasts the question text without answers.
func (f *Flow) ShowQuestion() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guard(domain.TriggerShowQuestion); err != nil {
		return err
	}

	q := f.pickQuestionLocked()
	f.current = &q
	f.generation++
	f.roundID = uuid.NewString()
	f.startedAt = time.Time{}
	f.revealCount = 0
	f.rankings = nil
	f.ranked = false
	f.ledger.Clear(f.generation)

	f.screen.ClearDisplay()
	f.screen.ShowQuestionText(q.Text)
	f.broadcastPhase(PhaseTagQuestion, QuestionPayload{RoundID: f.roundID, Text: q.Text})

	f.setPhaseLocked(domain.PhaseQuestionShown)
	log.Info().Str("round_id", f.roundID).Str("question_id", q.ID).Int64("generation", f.generation).Msg("question shown")
	return nil
}

// RevealAnswers shows the four answers, starts the countdown, and opens the
// round to remote clients. A failed broadcast degrades to host-only mode but
// never blocks the transition.
func (f *Flow) RevealAnswers() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guard(domain.TriggerRevealAnswers); err != nil {
		return err
	}

	q := *f.current
	for i := 0; i < domain.AnswerCount; i++ {
		f.screen.ShowAnswerLetter(byte('A'+i), q.Answers[i])
	}
	f.audio.PlayCue(CueAnswersReveal)

	// The start instant is recorded and the ledger opens before the
	// broadcast goes out, so no accepted submission can predate it.
	f.startedAt = f.timer.Start(f.onTick, f.onExpire)
	f.ledger.Open()

	msg := StartQuestionMessage{
		RoundID:          f.roundID,
		Generation:       f.generation,
		QuestionID:       q.ID,
		Text:             q.Text,
		Answers:          q.Answers,
		TimeLimitSeconds: int(f.cfg.Duration / time.Second),
	}
	if err := f.transport.StartQuestion(msg); err != nil {
		log.Warn().Err(err).Str("round_id", f.roundID).Msg("start-question broadcast failed; continuing host-only")
	}

	f.setPhaseLocked(domain.PhaseAnswersRevealed)
	return nil
}

func (f *Flow) onTick(remaining time.Duration) {
	sec := secondsCeil(remaining)
	f.screen.ShowTimer(sec)
	f.broadcastPhase(PhaseTagTimer, TimerPayload{RemainingSec: sec})
}

// onExpire is the authoritative countdown expiry, delivered from the timer
// goroutine and serialized with host triggers here.
func (f *Flow) onExpire() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.phase != domain.PhaseAnswersRevealed {
		return
	}
	f.timer.Stop()
	f.ledger.Close()
	f.audio.PlayCue(CueTimeUp)
	f.screen.ShowTimer(0)
	if err := f.transport.EndQuestion(); err != nil {
		log.Warn().Err(err).Msg("end-question broadcast failed; continuing host-only")
	}
	f.broadcastPhase(PhaseTagTimerExpired, nil)
	f.setPhaseLocked(domain.PhaseTimerExpired)
	log.Info().Str("round_id", f.roundID).Int("submissions", f.ledger.Count()).Msg("countdown expired")
}

// RevealCorrect reveals the next position of the correct order. The fourth
// call materializes the ranking exactly once from the ledger as it stands;
// later submissions never change it.
func (f *Flow) RevealCorrect() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guard(domain.TriggerRevealCorrect); err != nil {
		return err
	}
	if f.revealCount >= domain.AnswerCount {
		return fmt.Errorf("%w: correct order already fully revealed", domain.ErrGuardViolation)
	}

	q := *f.current
	letter := q.CorrectOrder[f.revealCount]
	// Lift the tile from the answer grid, then place it in its reveal slot.
	f.screen.RemoveAnswerLetter(letter)
	f.screen.ShowAnswerLetter(letter, q.Answers[letter-'A'])
	f.audio.PlayCue(CueCorrectReveal)
	f.revealCount++
	f.setPhaseLocked(domain.PhaseRevealingCorrect)

	if f.revealCount < domain.AnswerCount {
		return nil
	}

	f.rankings = Rank(f.ledger.Snapshot(), q.CorrectOrder, f.startedAt)
	f.ranked = true
	correct := CorrectCount(f.rankings)
	log.Info().Str("round_id", f.roundID).Int("ranked", len(f.rankings)).Int("correct", correct).Msg("ranking materialized")

	if correct > 1 {
		for _, r := range f.rankings {
			if r.Correct {
				f.screen.ShowContestantStrap(r.Rank, r.DisplayName, float64(r.TimeElapsedMs)/1000.0)
				f.screen.HighlightContestant(r.Rank, false)
			}
		}
		f.broadcastPhase(PhaseTagRevealingWinner, nil)
		f.setPhaseLocked(domain.PhaseWinnersShown)
	}
	return nil
}

// ConfirmWinner resolves the round. With zero correct submissions it
// declares no winner and loops back to QuestionReady for a retry; otherwise
// the rank-1 result wins.
func (f *Flow) ConfirmWinner() (domain.RoundOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guard(domain.TriggerConfirmWinner); err != nil {
		return domain.RoundOutcome{}, err
	}
	if !f.ranked {
		return domain.RoundOutcome{}, fmt.Errorf("%w: correct order not fully revealed", domain.ErrGuardViolation)
	}

	correctIDs := make([]string, 0, len(f.rankings))
	for _, r := range f.rankings {
		if r.Correct {
			correctIDs = append(correctIDs, r.ParticipantID)
		}
	}

	if len(correctIDs) == 0 {
		f.audio.PlayCue(CueNoWinner)
		f.broadcastPhase(PhaseTagNoWinner, nil)
		f.screen.ClearDisplay()
		f.setPhaseLocked(domain.PhaseQuestionReady)
		log.Info().Str("round_id", f.roundID).Msg("no winner; round retryable")
		return domain.RoundOutcome{NoWinner: true}, nil
	}

	winner := f.rankings[0]
	f.audio.PlayCue(CueWinner)
	f.screen.HighlightContestant(winner.Rank, true)
	f.screen.ShowWinner(winner.DisplayName, float64(winner.TimeElapsedMs)/1000.0)
	f.broadcastPhase(PhaseTagWinnerConfirmed, WinnerConfirmedPayload{
		WinnerID:   winner.ParticipantID,
		WinnerName: winner.DisplayName,
		CorrectIDs: correctIDs,
	})
	f.setPhaseLocked(domain.PhaseWinnerAnnounced)
	log.Info().Str("round_id", f.roundID).Str("winner_id", winner.ParticipantID).Int64("elapsed_ms", winner.TimeElapsedMs).Msg("winner confirmed")
	return domain.RoundOutcome{Winner: &winner, CorrectIDs: correctIDs}, nil
}

// EndRound closes out an announced winner and returns remote clients to the
// lobby. Terminal for this question; StartIntro opens the next one.
func (f *Flow) EndRound() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guard(domain.TriggerEndRound); err != nil {
		return err
	}
	f.screen.ClearDisplay()
	f.broadcastPhase(PhaseTagResetToLobby, nil)
	f.setPhaseLocked(domain.PhaseComplete)
	return nil
}

// Abort bails out of the round from any non-initial phase: stops the
// countdown and all audio, clears the screens, and resets to NotStarted.
func (f *Flow) Abort() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guard(domain.TriggerAbort); err != nil {
		return err
	}
	f.timer.Stop()
	f.ledger.Close()
	f.audio.StopAll()
	f.screen.ClearDisplay()
	if err := f.transport.EndQuestion(); err != nil {
		log.Warn().Err(err).Msg("end-question broadcast failed during abort")
	}
	f.broadcastPhase(PhaseTagResetToLobby, nil)
	f.current = nil
	f.rankings = nil
	f.ranked = false
	f.revealCount = 0
	f.setPhaseLocked(domain.PhaseNotStarted)
	log.Info().Str("round_id", f.roundID).Msg("round aborted by host")
	return nil
}

// Submit ingests a participant's answer from the transport layer. It stamps
// the server-observed receive instant and appends through the ledger only;
// duplicates and stale-round submissions are dropped with a warning, never
// fatal to the round.
func (f *Flow) Submit(participantID, displayName, sequence string, generation int64) error {
	if !domain.ValidOrder(sequence) {
		log.Warn().Str("participant_id", participantID).Str("sequence", sequence).Msg("rejected malformed answer sequence")
		return domain.ErrInvalidSequence
	}
	sub := domain.AnswerSubmission{
		ParticipantID: participantID,
		DisplayName:   displayName,
		Sequence:      sequence,
		SubmittedAt:   f.clock.Now(),
		Round:         generation,
	}
	if err := f.ledger.Record(sub); err != nil {
		log.Warn().Err(err).Str("participant_id", participantID).Int64("generation", generation).Msg("submission dropped")
		return err
	}
	log.Debug().Str("participant_id", participantID).Int64("generation", generation).Msg("submission recorded")
	return nil
}

// Snapshot returns a read-only view of the round for UI and observers.
func (f *Flow) Snapshot() domain.RoundView {
	f.mu.Lock()
	defer f.mu.Unlock()

	view := domain.RoundView{
		Phase:        f.phase,
		RoundID:      f.roundID,
		Generation:   f.generation,
		Participants: f.registry.ActiveCount(),
		Submissions:  f.ledger.Count(),
		RevealCount:  f.revealCount,
		RemainingSec: secondsCeil(f.timer.Remaining()),
	}
	if f.current != nil {
		view.QuestionID = f.current.ID
		view.QuestionText = f.current.Text
	}
	if f.ranked {
		view.Rankings = append([]domain.RankingResult(nil), f.rankings...)
	}
	return view
}

// Phase returns the current phase.
func (f *Flow) Phase() domain.Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

func (f *Flow) guard(t domain.Trigger) error {
	if !f.phase.Allows(t) {
		return fmt.Errorf("%w: %s in %s", domain.ErrGuardViolation, t, f.phase)
	}
	return nil
}

func (f *Flow) setPhaseLocked(p domain.Phase) {
	log.Debug().Str("from", f.phase.String()).Str("to", p.String()).Msg("phase transition")
	f.phase = p
}

func (f *Flow) loadCatalogLocked(ctx context.Context) error {
	if f.questions != nil {
		return nil
	}
	questions, err := f.catalog.GetCatalog(ctx)
	if err != nil {
		return fmt.Errorf("load question catalog: %w", err)
	}
	if len(questions) == 0 {
		return fmt.Errorf("%w: %w", domain.ErrGuardViolation, domain.ErrEmptyCatalog)
	}
	f.questions = questions
	return nil
}

// pickQuestionLocked draws uniformly from the questions not yet played this
// show window; once every question has been used the unused set resets.
func (f *Flow) pickQuestionLocked() domain.Question {
	unused := make([]domain.Question, 0, len(f.questions))
	for _, q := range f.questions {
		if _, ok := f.used[q.ID]; !ok {
			unused = append(unused, q)
		}
	}
	if len(unused) == 0 {
		f.used = make(map[string]struct{})
		unused = f.questions
		log.Info().Msg("question bank exhausted; reusing questions")
	}
	q := unused[f.rnd.Intn(len(unused))]
	f.used[q.ID] = struct{}{}
	return q
}

func (f *Flow) broadcastPhase(tag PhaseTag, payload any) {
	if err := f.transport.BroadcastPhase(tag, payload); err != nil {
		log.Warn().Err(err).Str("tag", string(tag)).Msg("phase broadcast failed; continuing host-only")
	}
}

func secondsCeil(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
