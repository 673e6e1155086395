package compose

import (
	"fmt"
	"math"
	"strings"

	"mythbuster/pkg/classifier"
	"mythbuster/pkg/factcheck"
)

const header = "🔍 *Fact-Check Result:*"

const closingReminder = "💡 _Always verify important information from multiple reliable sources._"

const (
	greetingTemplate = "👋 Hello! I'm the AI Myth-Buster bot.\n\n" +
		"Send me any claim, rumor or forwarded message and I'll fact-check it for you. " +
		"Try something like: \"Drinking hot water cures the flu\"."

	thanksTemplate = "😊 You're welcome! Glad I could help.\n\n" +
		"Feel free to send another claim whenever something looks suspicious."

	helpTemplate = "🤖 *How I work:*\n\n" +
		"1. Forward or type a claim you want checked.\n" +
		"2. I analyze it and reply with a verdict: TRUE, FALSE, PARTIALLY TRUE or UNVERIFIABLE.\n" +
		"3. Where possible I mention reliable sources like WHO, CDC or Reuters.\n\n" +
		"Tip: one claim per message gives the clearest answers."

	defaultTemplate = "💬 I'm here to help bust myths and check facts.\n\n" +
		"Send me a specific claim or statement and I'll tell you what the evidence says."

	mediaTemplate = "📎 Received your message with media: %s\n\n" +
		"Note: fact-checking images, audio and video isn't supported yet. " +
		"Please send the claim as text."

	apologyTemplate = "Sorry, I encountered an error. Please try again later."
)

// Compose renders the reply for a route. A fact-check route needs a result;
// without one it falls back to the apology so the reply is never empty.
func Compose(route classifier.Route, result *factcheck.Result) string {
	switch route {
	case classifier.RouteFactCheck:
		if result == nil {
			return Apology()
		}
		return FactCheck(*result)
	case classifier.RouteGreeting:
		return greetingTemplate
	case classifier.RouteThanks:
		return thanksTemplate
	case classifier.RouteHelp:
		return helpTemplate
	default:
		return defaultTemplate
	}
}

// FactCheck renders a fact-check result.
func FactCheck(result factcheck.Result) string {
	text := strings.TrimSpace(result.Text)
	if text == "" {
		text = factcheck.FallbackText
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	b.WriteString(text)

	if result.Confidence != nil && *result.Confidence > 0 {
		c := *result.Confidence
		fmt.Fprintf(&b, "\n\n%s Confidence: %d%%", confidenceEmoji(c), Percent(c))
	}

	if len(result.Sources) > 0 {
		fmt.Fprintf(&b, "\n📚 Sources: %s", strings.Join(result.Sources, ", "))
	}

	b.WriteString("\n\n")
	b.WriteString(closingReminder)

	return b.String()
}

// MediaNotice answers messages that carry attachments, echoing the body.
func MediaNotice(body string) string {
	return fmt.Sprintf(mediaTemplate, strings.TrimSpace(body))
}

// Apology is the generic reply used when the pipeline fails.
func Apology() string {
	return apologyTemplate
}

// Percent converts a confidence in [0,1] to a rounded integer percentage.
func Percent(confidence float64) int {
	return int(math.Round(confidence * 100))
}

func confidenceEmoji(confidence float64) string {
	switch {
	case confidence > 0.7:
		return "🟢"
	case confidence > 0.4:
		return "🟡"
	default:
		return "🔴"
	}
}
