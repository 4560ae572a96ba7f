package permission

import (
	"strings"
	"testing"
	"time"

	"screensnap/src/clock"
	"screensnap/src/messages"
)

type fakeProber struct {
	statuses map[Capability]Status
	prompts  map[Capability]int
	// grantOnPrompt flips the capability to authorized when prompted.
	grantOnPrompt bool
}

func newFakeProber(s Status) *fakeProber {
	p := &fakeProber{statuses: map[Capability]Status{}, prompts: map[Capability]int{}}
	for _, c := range All {
		p.statuses[c] = s
	}
	return p
}

func (p *fakeProber) Status(c Capability) Status { return p.statuses[c] }

func (p *fakeProber) Prompt(c Capability) error {
	p.prompts[c]++
	if p.grantOnPrompt {
		p.statuses[c] = Authorized
	}
	return nil
}

type fakeRemediator struct {
	calls []Capability
	links []string
}

func (r *fakeRemediator) Remediate(c Capability, link, message string) {
	r.calls = append(r.calls, c)
	r.links = append(r.links, link)
}

func newTestGate(p Prober) (*Gate, *fakeRemediator, *clock.Manual) {
	r := &fakeRemediator{}
	clk := clock.NewManual(time.Unix(0, 0))
	return NewGate(p, r, messages.Immediate{}, clk), r, clk
}

func TestAuthorizedCompletesImmediately(t *testing.T) {
	p := newFakeProber(Authorized)
	g, r, clk := newTestGate(p)

	var got []Status
	g.Request(ScreenRecording, func(s Status) { got = append(got, s) })
	if len(got) != 1 || got[0] != Authorized {
		t.Fatalf("completion = %v, want immediate authorized", got)
	}
	if p.prompts[ScreenRecording] != 0 {
		t.Fatal("authorized capability must not prompt")
	}
	if clk.Pending() != 0 {
		t.Fatal("no re-check should be scheduled")
	}
	if len(r.calls) != 0 {
		t.Fatal("no remediation expected")
	}
	if g.Retries(ScreenRecording) != 0 {
		t.Fatal("counter must not move")
	}
}

func TestRequestRechecksAfterDelay(t *testing.T) {
	p := newFakeProber(NotDetermined)
	p.grantOnPrompt = true
	g, _, clk := newTestGate(p)

	var got []Status
	g.Request(ScreenRecording, func(s Status) { got = append(got, s) })
	if len(got) != 0 {
		t.Fatal("completion must wait for the re-check")
	}
	clk.Advance(RecheckDelay - time.Millisecond)
	if len(got) != 0 {
		t.Fatal("re-check fired early")
	}
	clk.Advance(time.Millisecond)
	if len(got) != 1 || got[0] != Authorized {
		t.Fatalf("completion = %v, want authorized", got)
	}
}

func TestFourthRequestSurfacesRemediation(t *testing.T) {
	p := newFakeProber(Denied)
	g, r, clk := newTestGate(p)

	var got []Status
	for i := 0; i < MaxRetries; i++ {
		g.Request(ScreenRecording, func(s Status) { got = append(got, s) })
		clk.Advance(RecheckDelay)
	}
	if p.prompts[ScreenRecording] != MaxRetries {
		t.Fatalf("prompts = %d, want %d", p.prompts[ScreenRecording], MaxRetries)
	}
	if len(r.calls) != 0 {
		t.Fatal("remediation shown too early")
	}

	g.Request(ScreenRecording, func(s Status) { got = append(got, s) })
	if p.prompts[ScreenRecording] != MaxRetries {
		t.Fatalf("4th request prompted the OS (prompts=%d)", p.prompts[ScreenRecording])
	}
	if len(r.calls) != 1 || r.calls[0] != ScreenRecording {
		t.Fatalf("remediation calls = %v", r.calls)
	}
	if !strings.HasPrefix(r.links[0], "x-apple.systempreferences:com.apple.preference.security?Privacy") {
		t.Fatalf("unexpected link %q", r.links[0])
	}
	if len(got) != MaxRetries+1 {
		t.Fatalf("completions = %d, want %d", len(got), MaxRetries+1)
	}
	if got[len(got)-1] != Denied {
		t.Fatalf("last status = %v", got[len(got)-1])
	}
}

func TestCountersAreIndependentAndResettable(t *testing.T) {
	p := newFakeProber(Denied)
	g, r, clk := newTestGate(p)

	for i := 0; i < MaxRetries; i++ {
		g.Request(ScreenRecording, nil)
	}
	clk.Advance(RecheckDelay)

	g.Request(Accessibility, nil)
	if p.prompts[Accessibility] != 1 {
		t.Fatalf("accessibility prompts = %d, want 1", p.prompts[Accessibility])
	}
	if len(r.calls) != 0 {
		t.Fatal("accessibility has its own counter")
	}

	g.ResetRetryCounters()
	g.Request(ScreenRecording, nil)
	if p.prompts[ScreenRecording] != MaxRetries+1 {
		t.Fatalf("after reset prompts = %d, want %d", p.prompts[ScreenRecording], MaxRetries+1)
	}
	if len(r.calls) != 0 {
		t.Fatal("reset should allow prompting again")
	}
}

func TestRestrictedGoesStraightToRemediation(t *testing.T) {
	p := newFakeProber(Restricted)
	g, r, _ := newTestGate(p)
	g.Request(Notifications, nil)
	if p.prompts[Notifications] != 0 {
		t.Fatal("restricted capability must not prompt")
	}
	if len(r.calls) != 1 {
		t.Fatalf("remediation calls = %d", len(r.calls))
	}
}

func TestSnapshot(t *testing.T) {
	p := newFakeProber(Denied)
	p.statuses[Notifications] = Authorized
	g, _, _ := newTestGate(p)
	g.Request(ScreenRecording, nil)

	snap := g.Snapshot()
	if snap.Statuses[ScreenRecording] != Denied || snap.Statuses[Notifications] != Authorized {
		t.Fatalf("unexpected statuses %v", snap.Statuses)
	}
	if snap.Retries[ScreenRecording] != 1 {
		t.Fatalf("retries = %v", snap.Retries)
	}
	lines := g.Diagnostics(true)
	if len(lines) != len(All)+1 {
		t.Fatalf("diagnostics lines = %d", len(lines))
	}
	if !strings.Contains(lines[0], "screen-recording") || !strings.Contains(lines[0], "retries=1/3") {
		t.Fatalf("unexpected line %q", lines[0])
	}
}

func TestParseCapability(t *testing.T) {
	for _, c := range All {
		got, err := ParseCapability(c.String())
		if err != nil || got != c {
			t.Errorf("ParseCapability(%q) = %v, %v", c.String(), got, err)
		}
	}
	if _, err := ParseCapability("camera"); err == nil {
		t.Error("expected error for unknown capability")
	}
}
