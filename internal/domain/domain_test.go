package domain

import "testing"

func TestValidOrder(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"ABCD", true},
		{"CBAD", true},
		{"DCBA", true},
		{"AABC", false},
		{"ABC", false},
		{"ABCDE", false},
		{"ABCE", false},
		{"", false},
		{"abcd", false},
	}
	for _, c := range cases {
		if got := ValidOrder(c.in); got != c.want {
			t.Fatalf("ValidOrder(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestPhaseGating(t *testing.T) {
	if !PhaseNotStarted.Allows(TriggerStartIntro) {
		t.Fatalf("StartIntro must be legal from NotStarted")
	}
	if PhaseNotStarted.Allows(TriggerShowQuestion) {
		t.Fatalf("ShowQuestion must not skip the intro")
	}
	if !PhaseQuestionReady.Allows(TriggerShowQuestion) {
		t.Fatalf("ShowQuestion must be legal from QuestionReady")
	}
	if PhaseAnswersRevealed.Allows(TriggerRevealCorrect) {
		t.Fatalf("RevealCorrect must wait for the countdown to expire")
	}
	if !PhaseComplete.Allows(TriggerStartIntro) {
		t.Fatalf("a completed round must allow the next intro")
	}
}
