package classifier

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Route is the classification outcome that selects how a message is answered.
type Route string

const (
	RouteFactCheck             Route = "fact_check"
	RouteGreeting              Route = "greeting"
	RouteThanks                Route = "thanks"
	RouteHelp                  Route = "help"
	RouteDefaultConversational Route = "conversational"
)

// IsConversational reports whether the route is answered from a fixed template.
func (r Route) IsConversational() bool {
	return r != RouteFactCheck
}

const defaultMinFactLength = 20

// Rules is the ordered rule set used to route inbound text.
//
// Conversational phrases are matched on word boundaries; fact indicators are
// plain substrings. HelpCommands only match a message that consists of nothing
// else, so a claim mentioning "help" is still fact-checked.
type Rules struct {
	Greetings      []string
	Thanks         []string
	HelpCommands   []string
	Conversational []string
	HelpSubRoute   []string
	FactIndicators []string
	MinFactLength  int
}

// DefaultRules returns the production rule set.
func DefaultRules() Rules {
	return Rules{
		Greetings: []string{
			"hello", "hi", "hey", "what's up", "how are you",
			"good morning", "good evening", "good night",
		},
		Thanks:       []string{"thanks", "thank you"},
		HelpCommands: []string{"help", "what can you do"},
		Conversational: []string{
			"love you", "miss you",
		},
		HelpSubRoute: []string{"help", "how", "what can you do"},
		FactIndicators: []string{
			"is", "are", "was", "were", "will", "can", "cannot", "causes", "prevents",
			"study shows", "research", "scientists", "doctors", "experts", "proven",
			"fact", "true", "false", "according to", "statistics", "data",
		},
		MinFactLength: defaultMinFactLength,
	}
}

// Classify routes text with the default rule set.
func Classify(text string) Route {
	return DefaultRules().Classify(text)
}

// IsFactCheckable reports whether text routes to the fact-check branch.
func IsFactCheckable(text string) bool {
	return Classify(text) == RouteFactCheck
}

// Classify applies the rules in priority order: conversational phrases, then
// bare help commands, then fact indicators, then the length fallback. The first
// match wins.
func (r Rules) Classify(text string) Route {
	lowered := normalize(text)

	if r.isConversational(lowered) {
		return r.conversationalRoute(lowered)
	}
	if r.isHelpCommand(lowered) {
		return RouteHelp
	}

	if containsAnySubstring(lowered, r.FactIndicators) {
		return RouteFactCheck
	}

	minLength := r.MinFactLength
	if minLength <= 0 {
		minLength = defaultMinFactLength
	}
	if len([]rune(strings.TrimSpace(text))) > minLength {
		return RouteFactCheck
	}

	return RouteDefaultConversational
}

func (r Rules) isConversational(lowered string) bool {
	return containsAnyPhrase(lowered, r.Greetings) ||
		containsAnyPhrase(lowered, r.Thanks) ||
		containsAnyPhrase(lowered, r.Conversational)
}

func (r Rules) isHelpCommand(lowered string) bool {
	command := strings.TrimRightFunc(strings.TrimSpace(lowered), unicode.IsPunct)
	for _, candidate := range r.HelpCommands {
		if candidate != "" && command == candidate {
			return true
		}
	}

	return false
}

func (r Rules) conversationalRoute(lowered string) Route {
	switch {
	case containsAnyPhrase(lowered, r.Greetings):
		return RouteGreeting
	case containsAnyPhrase(lowered, r.Thanks):
		return RouteThanks
	case containsAnyPhrase(lowered, r.HelpSubRoute):
		return RouteHelp
	default:
		return RouteDefaultConversational
	}
}

// normalize lower-cases text and folds typographic apostrophes sent by mobile
// keyboards so "what’s up" matches "what's up".
func normalize(text string) string {
	return strings.ReplaceAll(strings.ToLower(text), "\u2019", "'")
}

func containsAnySubstring(text string, needles []string) bool {
	for _, needle := range needles {
		if needle != "" && strings.Contains(text, needle) {
			return true
		}
	}

	return false
}

func containsAnyPhrase(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if ContainsPhrase(text, phrase) {
			return true
		}
	}

	return false
}

// ContainsPhrase reports whether phrase occurs in text with no letter or digit
// directly before or after it. Both arguments are compared as given.
func ContainsPhrase(text string, phrase string) bool {
	if phrase == "" {
		return false
	}

	offset := 0
	for offset <= len(text)-len(phrase) {
		idx := strings.Index(text[offset:], phrase)
		if idx < 0 {
			return false
		}

		start := offset + idx
		end := start + len(phrase)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}

		offset = start + 1
	}

	return false
}

func boundaryBefore(text string, idx int) bool {
	if idx == 0 {
		return true
	}

	r, _ := utf8.DecodeLastRuneInString(text[:idx])
	return !isWordRune(r)
}

func boundaryAfter(text string, idx int) bool {
	if idx >= len(text) {
		return true
	}

	r, _ := utf8.DecodeRuneInString(text[idx:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
