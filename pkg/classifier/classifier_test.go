package classifier

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  Route
	}{
		{name: "greeting", input: "hello", want: RouteGreeting},
		{name: "greeting with claim", input: "hi, did you know vaccines cause autism?", want: RouteGreeting},
		{name: "greeting case insensitive", input: "Good Morning!", want: RouteGreeting},
		{name: "typographic apostrophe", input: "what’s up", want: RouteGreeting},
		{name: "how are you is a greeting", input: "how are you today", want: RouteGreeting},
		{name: "thanks", input: "thanks a lot", want: RouteThanks},
		{name: "thank you", input: "Thank you!", want: RouteThanks},
		{name: "help", input: "help", want: RouteHelp},
		{name: "what can you do", input: "what can you do?", want: RouteHelp},
		{name: "padded help command", input: "  Help! ", want: RouteHelp},
		{name: "help in a claim", input: "Drinking garlic water will help cure cancer", want: RouteFactCheck},
		{name: "help after fact indicator", input: "According to doctors, vitamin C can help prevent covid", want: RouteFactCheck},
		{name: "help in a negated claim", input: "5G towers cannot help spread the virus, studies show", want: RouteFactCheck},
		{name: "short help request without command", input: "help me", want: RouteDefaultConversational},
		{name: "well wishes", input: "love you bot", want: RouteDefaultConversational},
		{name: "well wishes with how", input: "miss you, how does this work", want: RouteHelp},
		{name: "fact indicator", input: "Vaccines cause autism", want: RouteFactCheck},
		{name: "fact phrase", input: "study shows coffee", want: RouteFactCheck},
		{name: "hi inside history is not a greeting", input: "history", want: RouteFactCheck},
		{name: "help inside helpful is not a help request", input: "garlic helpful", want: RouteDefaultConversational},
		{name: "empty", input: "", want: RouteDefaultConversational},
		{name: "whitespace", input: "   \t  ", want: RouteDefaultConversational},
		{name: "short unclassified", input: "ok", want: RouteDefaultConversational},
		{name: "twenty chars", input: strings.Repeat("x", 20), want: RouteDefaultConversational},
		{name: "twenty one chars", input: strings.Repeat("x", 21), want: RouteFactCheck},
		{name: "padded twenty chars", input: "  " + strings.Repeat("x", 20) + "  ", want: RouteDefaultConversational},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.input); got != tt.want {
				t.Fatalf("Classify(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestConversationalPhrasesWinOverFactIndicators(t *testing.T) {
	t.Parallel()

	input := "thanks, but is it true that the moon landing was faked according to experts?"
	if got := Classify(input); got != RouteThanks {
		t.Fatalf("Classify(%q) = %q, want %q", input, got, RouteThanks)
	}
}

func TestRulesMinFactLength(t *testing.T) {
	t.Parallel()

	rules := DefaultRules()
	rules.MinFactLength = 5

	if got := rules.Classify("xxxxxx"); got != RouteFactCheck {
		t.Fatalf("Classify with MinFactLength=5 = %q, want %q", got, RouteFactCheck)
	}

	rules.MinFactLength = 0
	if got := rules.Classify(strings.Repeat("x", 20)); got != RouteDefaultConversational {
		t.Fatalf("Classify with zero MinFactLength = %q, want default threshold", got)
	}
}

func TestIsFactCheckable(t *testing.T) {
	t.Parallel()

	if !IsFactCheckable("Drinking bleach cures covid") {
		t.Fatal("expected claim to be fact-checkable")
	}
	if IsFactCheckable("hey there") {
		t.Fatal("expected greeting not to be fact-checkable")
	}
}

func TestRouteIsConversational(t *testing.T) {
	t.Parallel()

	if RouteFactCheck.IsConversational() {
		t.Fatal("fact check route must not be conversational")
	}
	for _, route := range []Route{RouteGreeting, RouteThanks, RouteHelp, RouteDefaultConversational} {
		if !route.IsConversational() {
			t.Fatalf("route %q should be conversational", route)
		}
	}
}

func TestContainsPhrase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text   string
		phrase string
		want   bool
	}{
		{text: "hi there", phrase: "hi", want: true},
		{text: "oh hi", phrase: "hi", want: true},
		{text: "history", phrase: "hi", want: false},
		{text: "this and hi", phrase: "hi", want: true},
		{text: "hi!", phrase: "hi", want: true},
		{text: "what's up?", phrase: "what's up", want: true},
		{text: "anything", phrase: "", want: false},
		{text: "", phrase: "hi", want: false},
		{text: "héhi", phrase: "hi", want: false},
	}

	for _, tt := range tests {
		if got := ContainsPhrase(tt.text, tt.phrase); got != tt.want {
			t.Fatalf("ContainsPhrase(%q, %q) = %v, want %v", tt.text, tt.phrase, got, tt.want)
		}
	}
}

func TestIsSafeToProcess(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "short", input: "is it ok", want: false},
		{name: "nine chars padded", input: "  123456789  ", want: false},
		{name: "ten chars", input: "1234567890", want: true},
		{name: "personal phrase", input: "this is a private matter between us", want: false},
		{name: "greeting", input: "hello, the earth is flat", want: false},
		{name: "claim", input: "The earth is flat", want: true},
		{name: "thanks is not blocked by the safety gate", input: "thanks, the earth is flat", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsSafeToProcess(tt.input); got != tt.want {
				t.Fatalf("IsSafeToProcess(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
