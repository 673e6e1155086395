package classifier

import "strings"

const minSafeLength = 10

// safetyPhrases marks personal or private chat that should not be processed.
var safetyPhrases = []string{
	"how are you", "what's up", "hello", "hi", "hey",
	"good morning", "good evening", "good night",
	"love you", "miss you", "personal", "private",
}

// IsSafeToProcess is the content-safety gate. It is independent of routing:
// text shorter than 10 characters or containing a personal phrase is unsafe.
func IsSafeToProcess(text string) bool {
	if len([]rune(strings.TrimSpace(text))) < minSafeLength {
		return false
	}

	lowered := normalize(text)
	for _, phrase := range safetyPhrases {
		if ContainsPhrase(lowered, phrase) {
			return false
		}
	}

	return true
}
