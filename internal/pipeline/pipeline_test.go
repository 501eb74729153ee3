package pipeline

import "testing"

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to Stage
		legal    bool
	}{
		{StageCold, StageContacted, true},
		{StageCold, StageClosedLost, true},
		{StageCold, StageQualified, false},
		{StageCold, StageFrozen, false},
		{StageContacted, StageInterested, true},
		{StageContacted, StageFrozen, true},
		{StageContacted, StageClosedWon, false},
		{StageInterested, StageQualified, true},
		{StageInterested, StageCold, false},
		{StageQualified, StageClosedWon, true},
		{StageQualified, StageClosedLost, true},
		{StageQualified, StageFrozen, true},
		{StageFrozen, StageQualified, true},
		{StageFrozen, StageCold, true},
		{StageFrozen, StageClosedWon, false},
		{StageFrozen, StageClosedLost, false},
		{StageCold, StageCold, false},
	}
	for _, tc := range cases {
		if got := IsLegalTransition(tc.from, tc.to); got != tc.legal {
			t.Errorf("IsLegalTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.legal)
		}
	}
}

func TestTerminalStagesHaveNoOutgoingEdges(t *testing.T) {
	for _, terminal := range []Stage{StageClosedWon, StageClosedLost} {
		for _, to := range Stages() {
			if IsLegalTransition(terminal, to) {
				t.Errorf("terminal stage %s should not transition to %s", terminal, to)
			}
		}
	}
}

func TestCheckTransitionReturnsTypedError(t *testing.T) {
	if err := CheckTransition(StageCold, StageContacted); err != nil {
		t.Fatalf("legal transition returned error: %v", err)
	}
	err := CheckTransition(StageCold, StageQualified)
	if err == nil {
		t.Fatal("expected error for illegal transition")
	}
}

func TestParseStage(t *testing.T) {
	if stage, ok := ParseStage("cold"); !ok || stage != StageCold {
		t.Fatalf("ParseStage(cold) = %q, %v", stage, ok)
	}
	if _, ok := ParseStage("lukewarm"); ok {
		t.Fatal("ParseStage accepted unknown stage")
	}
}

func TestValidateBreakdown(t *testing.T) {
	good := Breakdown{BusinessSize: 15, DigitalPresence: 20, CompetitorGaps: 10, Location: 10, Industry: 8, RevenueIndicators: 5}
	if err := ValidateBreakdown(good); err != nil {
		t.Fatalf("valid breakdown rejected: %v", err)
	}
	overCap := good
	overCap.Industry = 11
	if err := ValidateBreakdown(overCap); err == nil {
		t.Fatal("component above cap accepted")
	}
	negative := good
	negative.Location = -1
	if err := ValidateBreakdown(negative); err == nil {
		t.Fatal("negative component accepted")
	}
}

func TestValidateScoreTolerance(t *testing.T) {
	b := Breakdown{BusinessSize: 15, DigitalPresence: 20, CompetitorGaps: 10, Location: 10, Industry: 8, RevenueIndicators: 5}
	total := b.Total()
	if !ValidateScore(total, b) {
		t.Fatal("exact total rejected")
	}
	if !ValidateScore(total+1, b) {
		t.Fatal("total within tolerance rejected")
	}
	if ValidateScore(total+2, b) {
		t.Fatal("total outside tolerance accepted")
	}
}

func TestLevelBandingMonotonic(t *testing.T) {
	bands := DefaultBands()
	order := map[Level]int{LevelDisqualified: 0, LevelLow: 1, LevelMedium: 2, LevelHigh: 3}
	prev := bands.Level(0)
	for total := 1.0; total <= 100; total++ {
		cur := bands.Level(total)
		if order[cur] < order[prev] {
			t.Fatalf("banding not monotonic: %.0f -> %s after %s", total, cur, prev)
		}
		prev = cur
	}
}

func TestLevelBandsConfigurable(t *testing.T) {
	strict := Bands{High: 90, Medium: 70, Low: 50}
	if strict.Level(85) != LevelMedium {
		t.Fatalf("custom bands ignored: got %s", strict.Level(85))
	}
	// A degenerate configuration falls back to defaults instead of
	// collapsing all totals into one band.
	broken := Bands{High: 10, Medium: 50, Low: 90}
	if broken.Level(85) != LevelHigh {
		t.Fatalf("fallback bands not applied: got %s", broken.Level(85))
	}
}
