package session

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestCorrectEventTimeZeroUsesNow(t *testing.T) {
	before := time.Now()
	got := correctEventTime(time.Time{})
	after := time.Now()
	if got.Before(before) || got.After(after) {
		t.Fatalf("expected correctEventTime(zero) to be close to now, got %v (window %v..%v)", got, before, after)
	}
}

func TestCorrectEventTimeNonZeroShiftsEightHours(t *testing.T) {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := correctEventTime(epoch)
	want := epoch.Add(8 * time.Hour)
	if !got.Equal(want) {
		t.Fatalf("correctEventTime() = %v, want %v", got, want)
	}
}

func TestClassifyBattleModeTwoAnchorsIsTeamBattle(t *testing.T) {
	b := rawBattle{teams: []rawBattleTeam{
		{anchors: []rawBattleAnchor{{uid: "a"}}},
		{anchors: []rawBattleAnchor{{uid: "b"}}},
	}}
	if got := classifyBattleMode(b); got != "team_battle" {
		t.Fatalf("classifyBattleMode() = %q, want %q", got, "team_battle")
	}
}

func TestClassifyBattleModeThreeOrMoreAnchorsIsFreeForAll(t *testing.T) {
	b := rawBattle{teams: []rawBattleTeam{
		{anchors: []rawBattleAnchor{{uid: "a"}}},
		{anchors: []rawBattleAnchor{{uid: "b"}}},
		{anchors: []rawBattleAnchor{{uid: "c"}}},
	}}
	if got := classifyBattleMode(b); got != "free_for_all" {
		t.Fatalf("classifyBattleMode() = %q, want %q", got, "free_for_all")
	}
}

func TestClassifyBattleModeNoAnchorsIsFreeForAll(t *testing.T) {
	if got := classifyBattleMode(rawBattle{}); got != "free_for_all" {
		t.Fatalf("classifyBattleMode() = %q, want %q", got, "free_for_all")
	}
}

func TestClassifyBattleModeDefinedWinStatusIsTeamBattleEvenWithManyAnchors(t *testing.T) {
	b := rawBattle{teams: []rawBattleTeam{
		{winStatus: 1, anchors: []rawBattleAnchor{{uid: "a"}}},
		{winStatus: 2, anchors: []rawBattleAnchor{{uid: "b"}}},
		{anchors: []rawBattleAnchor{{uid: "c"}}},
	}}
	if got := classifyBattleMode(b); got != "team_battle" {
		t.Fatalf("classifyBattleMode() = %q, want %q (win_status should take priority over anchor count)", got, "team_battle")
	}
}

func TestClassifyBattleModeUndecidedWinStatusDoesNotForceTeamBattle(t *testing.T) {
	b := rawBattle{teams: []rawBattleTeam{
		{winStatus: 0, anchors: []rawBattleAnchor{{uid: "a"}}},
		{winStatus: 0, anchors: []rawBattleAnchor{{uid: "b"}}},
		{winStatus: 0, anchors: []rawBattleAnchor{{uid: "c"}}},
	}}
	if got := classifyBattleMode(b); got != "free_for_all" {
		t.Fatalf("classifyBattleMode() = %q, want %q (win_status=0 is undecided, not a defined outcome)", got, "free_for_all")
	}
}

func TestBuildBattleTeamsSortsByFirstAnchorRankOnlyInFreeForAll(t *testing.T) {
	b := rawBattle{teams: []rawBattleTeam{
		{rank: 1, anchors: []rawBattleAnchor{{uid: "a", rank: 2}}},
		{rank: 2, anchors: []rawBattleAnchor{{uid: "b", rank: 1}}},
	}}

	ffa := buildBattleTeams(b, "free_for_all")
	if ffa[0].Anchors[0].UID != "b" || ffa[1].Anchors[0].UID != "a" {
		t.Fatalf("expected free_for_all teams sorted by first anchor rank ascending, got order %q, %q", ffa[0].Anchors[0].UID, ffa[1].Anchors[0].UID)
	}

	tb := buildBattleTeams(b, "team_battle")
	if tb[0].Anchors[0].UID != "a" || tb[1].Anchors[0].UID != "b" {
		t.Fatal("expected team_battle teams to preserve original (unsorted) order")
	}
}

func TestBuildBattleTeamsTeamWithNoAnchorsSortsLastInFreeForAll(t *testing.T) {
	b := rawBattle{teams: []rawBattleTeam{
		{anchors: nil},
		{anchors: []rawBattleAnchor{{uid: "a", rank: 1}}},
	}}
	ffa := buildBattleTeams(b, "free_for_all")
	if len(ffa[1].Anchors) != 0 {
		t.Fatalf("expected the anchor-less team to sort last, got order %+v", ffa)
	}
}

func TestBuildBattleTeamsCarriesAnchorsAndContributors(t *testing.T) {
	b := rawBattle{teams: []rawBattleTeam{
		{
			rank:         1,
			contributors: []string{"u1", "u2"},
			anchors:      []rawBattleAnchor{{uid: "a1", webRID: "w1", rank: 3}},
		},
	}}
	teams := buildBattleTeams(b, "team_battle")
	if len(teams) != 1 {
		t.Fatalf("expected 1 team, got %d", len(teams))
	}
	if len(teams[0].Anchors) != 1 || teams[0].Anchors[0].UID != "a1" || teams[0].Anchors[0].WebRID != "w1" || teams[0].Anchors[0].Rank != 3 {
		t.Fatalf("unexpected anchors: %+v", teams[0].Anchors)
	}
	if len(teams[0].Contributors) != 2 {
		t.Fatalf("expected 2 contributors, got %d", len(teams[0].Contributors))
	}
}

func TestDispatchUnrecognizedMethodDoesNotDrain(t *testing.T) {
	s := &Session{deps: Dependencies{}, log: zerolog.Nop()}
	ended := s.dispatch(nil, "SomeUnknownMessage", []byte{})
	if ended {
		t.Fatal("expected unrecognized method to never signal drain")
	}
}

func TestAllowThrottledGatesRepeatedCalls(t *testing.T) {
	s := &Session{deps: Dependencies{ThrottleEvery: 50 * time.Millisecond}, log: zerolog.Nop()}
	var last time.Time

	if !s.allowThrottled(&last) {
		t.Fatal("expected first call to be allowed")
	}
	if s.allowThrottled(&last) {
		t.Fatal("expected immediate second call to be throttled")
	}

	time.Sleep(60 * time.Millisecond)
	if !s.allowThrottled(&last) {
		t.Fatal("expected call after the throttle interval to be allowed")
	}
}

func TestAllowThrottledDefaultsWhenUnset(t *testing.T) {
	s := &Session{deps: Dependencies{}, log: zerolog.Nop()}
	var last time.Time
	if !s.allowThrottled(&last) {
		t.Fatal("expected first call to be allowed under default throttle")
	}
	if s.allowThrottled(&last) {
		t.Fatal("expected immediate second call to be throttled under the 2s default")
	}
}
