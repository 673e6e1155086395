package compose

import (
	"strings"
	"testing"

	"mythbuster/pkg/classifier"
	"mythbuster/pkg/factcheck"
)

func ptr(v float64) *float64 {
	return &v
}

func TestComposeNeverEmpty(t *testing.T) {
	t.Parallel()

	routes := []classifier.Route{
		classifier.RouteFactCheck,
		classifier.RouteGreeting,
		classifier.RouteThanks,
		classifier.RouteHelp,
		classifier.RouteDefaultConversational,
		classifier.Route("unknown"),
	}
	results := []*factcheck.Result{
		nil,
		{},
		{Text: "TRUE", Confidence: ptr(0.8), Sources: []string{"WHO"}},
	}

	for _, route := range routes {
		for _, result := range results {
			if got := Compose(route, result); strings.TrimSpace(got) == "" {
				t.Fatalf("Compose(%q, %+v) returned empty output", route, result)
			}
		}
	}
}

func TestComposeIsIdempotent(t *testing.T) {
	t.Parallel()

	result := &factcheck.Result{Text: "FALSE. No link.", Confidence: ptr(0.8), Sources: []string{"WHO", "CDC"}}
	for _, route := range []classifier.Route{classifier.RouteFactCheck, classifier.RouteGreeting, classifier.RouteHelp} {
		if first, second := Compose(route, result), Compose(route, result); first != second {
			t.Fatalf("Compose(%q) not idempotent:\n%q\n%q", route, first, second)
		}
	}
}

func TestFactCheckLayout(t *testing.T) {
	t.Parallel()

	got := FactCheck(factcheck.Result{
		Text:       "FALSE. Numerous CDC and WHO studies confirm no link.",
		Confidence: ptr(0.8),
		Sources:    []string{"WHO", "CDC"},
	})

	want := "🔍 *Fact-Check Result:*\n\n" +
		"FALSE. Numerous CDC and WHO studies confirm no link.\n\n" +
		"🟢 Confidence: 80%\n" +
		"📚 Sources: WHO, CDC\n\n" +
		closingReminder
	if got != want {
		t.Fatalf("FactCheck layout mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestFactCheckConfidenceTiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		confidence *float64
		want       string
	}{
		{name: "green", confidence: ptr(0.8), want: "🟢 Confidence: 80%"},
		{name: "yellow", confidence: ptr(0.6), want: "🟡 Confidence: 60%"},
		{name: "yellow upper bound", confidence: ptr(0.7), want: "🟡 Confidence: 70%"},
		{name: "red", confidence: ptr(0.3), want: "🔴 Confidence: 30%"},
		{name: "red at boundary", confidence: ptr(0.4), want: "🔴 Confidence: 40%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := FactCheck(factcheck.Result{Text: "verdict", Confidence: tt.confidence})
			if !strings.Contains(got, tt.want) {
				t.Fatalf("FactCheck output %q missing %q", got, tt.want)
			}
		})
	}
}

func TestFactCheckOmitsUnknownConfidenceAndSources(t *testing.T) {
	t.Parallel()

	for _, confidence := range []*float64{nil, ptr(0)} {
		got := FactCheck(factcheck.Result{Text: factcheck.FallbackText, Confidence: confidence, Sources: []string{}})
		if strings.Contains(got, "Confidence") {
			t.Fatalf("expected no confidence line, got %q", got)
		}
		if strings.Contains(got, "Sources") {
			t.Fatalf("expected no sources line, got %q", got)
		}
		if !strings.Contains(got, factcheck.FallbackText) {
			t.Fatalf("expected fallback text in %q", got)
		}
	}
}

func TestMediaNoticeEchoesBody(t *testing.T) {
	t.Parallel()

	got := MediaNotice("  look at this  ")
	if !strings.Contains(got, "look at this") {
		t.Fatalf("media notice %q does not echo body", got)
	}
	if !strings.Contains(got, "isn't supported yet") {
		t.Fatalf("media notice %q missing unsupported note", got)
	}
}

func TestPercent(t *testing.T) {
	t.Parallel()

	tests := map[float64]int{0: 0, 0.3: 30, 0.5: 50, 0.6: 60, 0.8: 80, 1: 100, 0.555: 56}
	for in, want := range tests {
		if got := Percent(in); got != want {
			t.Fatalf("Percent(%v) = %d, want %d", in, got, want)
		}
	}
}
