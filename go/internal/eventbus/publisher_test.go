package eventbus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mcdev12/songduel/go/internal/events"
	"github.com/mcdev12/songduel/go/internal/match"
)

func TestBuildMsg(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	ev := match.Event{
		Type:    events.TypeGuessResult,
		To:      "player-1",
		Payload: events.GuessResultPayload{Correct: true, PointsEarned: 50},
	}

	msg, err := buildMsg("songduel.events", "ABC234", ev, "evt-1", at)
	if err != nil {
		t.Fatalf("buildMsg: %v", err)
	}

	if msg.Subject != "songduel.events.ABC234.guess_result" {
		t.Fatalf("subject = %q", msg.Subject)
	}
	for key, want := range map[string]string{
		"Event-Type":   "guess_result",
		"Session-Code": "ABC234",
		"Event-ID":     "evt-1",
	} {
		if got := msg.Header.Get(key); got != want {
			t.Errorf("header %s = %q, want %q", key, got, want)
		}
	}

	var env Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	var payload events.GuessResultPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	env.Payload = nil

	want := Envelope{
		EventID:     "evt-1",
		EventType:   "guess_result",
		SessionCode: "ABC234",
		PlayerID:    "player-1",
		Timestamp:   at.UTC(),
	}
	if diff := cmp.Diff(want, env); diff != "" {
		t.Fatalf("envelope mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(ev.Payload, payload); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildMsgBroadcastOmitsPlayer(t *testing.T) {
	ev := match.Event{Type: events.TypeStageAdvance, Payload: events.StageAdvancePayload{NewStage: 2}}
	msg, err := buildMsg("p", "XYZ789", ev, "evt-2", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("buildMsg: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(msg.Data, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := raw["playerId"]; ok {
		t.Fatalf("broadcast envelope carries playerId: %s", msg.Data)
	}
}

func TestBuildMsgUnencodablePayload(t *testing.T) {
	ev := match.Event{Type: events.TypeGameOver, Payload: make(chan int)}
	if _, err := buildMsg("p", "ABC234", ev, "evt-3", time.Now()); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestStreamConfigCoversPrefix(t *testing.T) {
	cfg := DefaultJetStreamConfig()
	sc := streamConfig(cfg)
	if diff := cmp.Diff([]string{"songduel.events.>"}, sc.Subjects); diff != "" {
		t.Fatalf("subjects mismatch (-want +got):\n%s", diff)
	}
	if !isStreamConfigEqual(sc, streamConfig(cfg)) {
		t.Fatal("identical configs compare unequal")
	}
	cfg.MaxAge = time.Hour
	if isStreamConfigEqual(sc, streamConfig(cfg)) {
		t.Fatal("changed MaxAge not detected")
	}

	moved := DefaultJetStreamConfig()
	moved.SubjectPrefix = "other.events"
	if isStreamConfigEqual(sc, streamConfig(moved)) {
		t.Fatal("changed subjects not detected")
	}
}

func TestDefaultStallWaitIsBounded(t *testing.T) {
	cfg := DefaultJetStreamConfig()
	if cfg.StallWait <= 0 || cfg.StallWait > 50*time.Millisecond {
		t.Fatalf("StallWait = %s, want a short positive wait", cfg.StallWait)
	}
}
