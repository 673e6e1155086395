package factcheck

import (
	"fmt"
	"strings"

	"mythbuster/pkg/classifier"
)

// confidenceTier is one lexical tier; tiers are checked in order.
type confidenceTier struct {
	score float64
	cues  []string
}

var confidenceTiers = []confidenceTier{
	{score: 0.8, cues: []string{"true", "false", "confirmed", "verified", "proven"}},
	{score: 0.6, cues: []string{"likely", "probably", "evidence suggests"}},
	{score: 0.3, cues: []string{"unclear", "unverifiable", "insufficient", "mixed"}},
}

const defaultConfidence = 0.5

// KnownSources is the allow-list of institutions recognized in completions,
// in reporting order.
var KnownSources = []string{
	"WHO", "CDC", "Reuters", "AP", "BBC", "NASA", "NIH",
	"FDA", "EPA", "NOAA", "Snopes", "FactCheck.org", "PolitiFact",
}

// BuildPrompt wraps a claim in the fact-checking instruction template.
func BuildPrompt(message string) string {
	return fmt.Sprintf(`Please fact-check the following claim:

"%s"

Provide a clear, concise response that includes:
1. Whether the claim is TRUE, FALSE, PARTIALLY TRUE, or UNVERIFIABLE
2. A brief explanation with key facts
3. Mention reliable sources if available (like WHO, CDC, Reuters, etc.)

Keep your response under 400 characters for WhatsApp readability.
Be objective and evidence-based.`, message)
}

// Confidence derives a heuristic score from lexical cues in a completion.
// Cues are plain case-insensitive substrings; the first matching tier wins.
func Confidence(text string) float64 {
	lowered := strings.ToLower(text)
	for _, tier := range confidenceTiers {
		for _, cue := range tier.cues {
			if strings.Contains(lowered, cue) {
				return tier.score
			}
		}
	}

	return defaultConfidence
}

// ExtractSources lists the known sources mentioned in text, in allow-list
// order and without duplicates. Names must stand as whole words, so "AP" does
// not match inside "PERHAPS".
func ExtractSources(text string) []string {
	upper := strings.ToUpper(text)
	sources := make([]string, 0, len(KnownSources))
	for _, source := range KnownSources {
		if classifier.ContainsPhrase(upper, strings.ToUpper(source)) {
			sources = append(sources, source)
		}
	}

	return sources
}
