package state

import "testing"

func TestNextStateHappyPath(t *testing.T) {
	steps := []struct {
		cur, evt, want string
	}{
		{StateCreated, EvtOpen, StateWaiting},
		{StateWaiting, EvtStart, StateActive},
		{StateActive, EvtComplete, StateCompleted},
	}
	for _, s := range steps {
		got, err := NextState(s.cur, s.evt)
		if err != nil {
			t.Fatalf("%s --%s-->: %v", s.cur, s.evt, err)
		}
		if got != s.want {
			t.Fatalf("%s --%s--> %s, want %s", s.cur, s.evt, got, s.want)
		}
	}
}

func TestCancelFromAnyNonTerminal(t *testing.T) {
	for _, cur := range []string{StateCreated, StateWaiting, StateActive} {
		got, err := NextState(cur, EvtCancel)
		if err != nil {
			t.Fatalf("cancel from %s: %v", cur, err)
		}
		if got != StateCancelled {
			t.Fatalf("cancel from %s -> %s, want cancelled", cur, got)
		}
	}
}

func TestTerminalStatesRejectEvents(t *testing.T) {
	for _, cur := range []string{StateCompleted, StateCancelled} {
		for _, evt := range []string{EvtOpen, EvtStart, EvtComplete, EvtCancel} {
			if _, err := NextState(cur, evt); err == nil {
				t.Fatalf("%s --%s--> should fail", cur, evt)
			}
		}
	}
}

func TestInvalidTransitions(t *testing.T) {
	bad := []struct{ cur, evt string }{
		{StateCreated, EvtStart},
		{StateCreated, EvtComplete},
		{StateWaiting, EvtOpen},
		{StateWaiting, EvtComplete},
		{StateActive, EvtOpen},
		{StateActive, EvtStart},
	}
	for _, b := range bad {
		if _, err := NextState(b.cur, b.evt); err == nil {
			t.Fatalf("%s --%s--> should fail", b.cur, b.evt)
		}
	}
}

func TestCodeRoundTrip(t *testing.T) {
	for _, s := range []string{StateCreated, StateWaiting, StateActive, StateCompleted, StateCancelled} {
		c := ToCode(s)
		if c == 0 {
			t.Fatalf("no code for state %s", s)
		}
		if FromCode(c) != s {
			t.Fatalf("code round trip failed for %s", s)
		}
	}
	if ToCode("bogus") != 0 || FromCode(99) != "" {
		t.Fatalf("unknown state/code should map to zero values")
	}
}
