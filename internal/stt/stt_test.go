package stt

import (
	"context"
	"testing"
)

// stubProbe is a Probe returning a fixed answer and counting calls.
type stubProbe struct {
	online bool
	calls  int
}

func (p *stubProbe) Online(ctx context.Context) bool {
	p.calls++
	return p.online
}

func TestResolveOnlineIgnoresProbe(t *testing.T) {
	for _, online := range []bool{true, false} {
		probe := &stubProbe{online: online}
		if got := Resolve(context.Background(), ModeOnline, probe); got != EffectiveOnline {
			t.Errorf("Resolve(online, probe=%v) = %q, want %q", online, got, EffectiveOnline)
		}
		if probe.calls != 0 {
			t.Errorf("expected probe untouched in online mode, got %d calls", probe.calls)
		}
	}
}

func TestResolveOfflineIgnoresProbe(t *testing.T) {
	for _, online := range []bool{true, false} {
		probe := &stubProbe{online: online}
		if got := Resolve(context.Background(), ModeOffline, probe); got != EffectiveOffline {
			t.Errorf("Resolve(offline, probe=%v) = %q, want %q", online, got, EffectiveOffline)
		}
		if probe.calls != 0 {
			t.Errorf("expected probe untouched in offline mode, got %d calls", probe.calls)
		}
	}
}

func TestResolveAutoFollowsProbe(t *testing.T) {
	cases := []struct {
		online bool
		want   EffectiveMode
	}{
		{online: true, want: EffectiveOnline},
		{online: false, want: EffectiveOffline},
	}
	for _, tc := range cases {
		probe := &stubProbe{online: tc.online}
		if got := Resolve(context.Background(), ModeAuto, probe); got != tc.want {
			t.Errorf("Resolve(auto, probe=%v) = %q, want %q", tc.online, got, tc.want)
		}
		if probe.calls != 1 {
			t.Errorf("expected exactly one probe call, got %d", probe.calls)
		}
	}
}

func TestResolveAutoWithoutProbeFallsOffline(t *testing.T) {
	if got := Resolve(context.Background(), ModeAuto, nil); got != EffectiveOffline {
		t.Errorf("Resolve(auto, nil) = %q, want %q", got, EffectiveOffline)
	}
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "online", want: ModeOnline},
		{in: "Offline", want: ModeOffline},
		{in: "auto", want: ModeAuto},
		{in: "automatic", want: ModeAuto},
		{in: " AUTO ", want: ModeAuto},
		{in: "hybrid", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseMode(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseMode(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMode(%q): unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
