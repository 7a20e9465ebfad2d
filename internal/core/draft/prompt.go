// Package draft builds drafting prompts and validates drafting output.
// Pure functions only; the drafting service itself lives behind a port.
package draft

import (
	"fmt"
	"strings"
)

// Turn is one prior exchange with the same contact on the same source.
type Turn struct {
	Inbound  string
	Response string
}

// StyleProfile captures how the operator writes.
type StyleProfile struct {
	WritingStyle      string
	PersonalityTraits []string
	Interests         []string
	ResponseRules     []string
}

// PersonHints is what we know about the sender.
type PersonHints struct {
	DisplayName  string
	Relationship string
	Style        string
	Notes        string
}

// PromptInput carries everything needed to build a prompt.
type PromptInput struct {
	SourceID      string
	SenderID      string
	Body          string
	History       []Turn
	Style         StyleProfile
	Person        *PersonHints
	PreviousDraft string // set together with Feedback for revisions
	Feedback      string
	MaxLength     int
}

// Prompt is the system section plus the user content sent to the drafting service.
type Prompt struct {
	System string
	User   string
}

// String flattens the prompt for services that accept a single text input.
func (p Prompt) String() string {
	return p.System + "\n\n" + p.User
}

const basePrompt = `You write replies to %s messages on behalf of the operator.

Replies should be:
- appropriate for the platform
- concise and to the point
- friendly but not overly casual
- at most %d characters

Reply with the message text only, without a greeting line explaining what it is.`

// platformGuidance maps a source to its expected tone.
var platformGuidance = map[string]string{
	"linkedin":  "professional networking tone",
	"telegram":  "conversational and friendly",
	"facebook":  "social and engaging",
	"instagram": "visual and trendy",
	"gmail":     "professional email tone",
}

// DefaultMaxLength is used when the input carries no length bound.
const DefaultMaxLength = 500

// IsRevision reports whether the input asks to revise an existing draft.
func (in PromptInput) IsRevision() bool {
	return strings.TrimSpace(in.Feedback) != "" && in.PreviousDraft != ""
}

// BuildPrompt builds the system prompt and user content for a draft request.
func BuildPrompt(in PromptInput) Prompt {
	maxLen := in.MaxLength
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}

	var sys strings.Builder
	fmt.Fprintf(&sys, basePrompt, in.SourceID, maxLen)
	if g, ok := platformGuidance[strings.ToLower(in.SourceID)]; ok {
		fmt.Fprintf(&sys, "\n\nPlatform guideline: %s.", g)
	}
	writeStyle(&sys, in.Style)
	if in.Person != nil {
		writePerson(&sys, in.SenderID, *in.Person)
	}

	var user strings.Builder
	if len(in.History) > 0 {
		user.WriteString("Conversation so far:\n")
		for _, t := range in.History {
			fmt.Fprintf(&user, "%s: %s\n", in.SenderID, t.Inbound)
			fmt.Fprintf(&user, "me: %s\n", t.Response)
		}
		user.WriteString("\n")
	}
	fmt.Fprintf(&user, "New message from %s:\n%s\n", in.SenderID, in.Body)

	if in.IsRevision() {
		fmt.Fprintf(&user, "\nCurrent draft:\n%s\n", in.PreviousDraft)
		fmt.Fprintf(&user, "\nRevision note:\n%s\n", strings.TrimSpace(in.Feedback))
		user.WriteString("\nRevise the current draft according to the note. Do not restart from scratch; keep what the note does not ask to change.")
	} else {
		user.WriteString("\nWrite a natural reply that fits this conversation.")
	}

	return Prompt{System: sys.String(), User: user.String()}
}

func writeStyle(b *strings.Builder, s StyleProfile) {
	if s.WritingStyle != "" {
		fmt.Fprintf(b, "\nWriting style: %s", s.WritingStyle)
	}
	if len(s.PersonalityTraits) > 0 {
		fmt.Fprintf(b, "\nPersonality traits: %s", strings.Join(s.PersonalityTraits, ", "))
	}
	if len(s.Interests) > 0 {
		fmt.Fprintf(b, "\nInterests: %s", strings.Join(s.Interests, ", "))
	}
	if len(s.ResponseRules) > 0 {
		b.WriteString("\nResponse rules:")
		for _, r := range s.ResponseRules {
			fmt.Fprintf(b, "\n- %s", r)
		}
	}
}

func writePerson(b *strings.Builder, senderID string, p PersonHints) {
	name := p.DisplayName
	if name == "" {
		name = senderID
	}
	fmt.Fprintf(b, "\n\nAbout the sender (%s):", name)
	if p.Relationship != "" {
		fmt.Fprintf(b, "\n- relationship: %s", p.Relationship)
	}
	if p.Style != "" {
		fmt.Fprintf(b, "\n- preferred style: %s", p.Style)
	}
	if p.Notes != "" {
		fmt.Fprintf(b, "\n- notes: %s", p.Notes)
	}
}

// Normalize cleans drafting output. ok is false when nothing usable came back.
// Text longer than maxLength is cut at the last word boundary that fits.
func Normalize(text string, maxLength int) (string, bool) {
	out := strings.TrimSpace(text)
	out = strings.Trim(out, "\"")
	out = strings.TrimSpace(out)
	if out == "" {
		return "", false
	}
	if maxLength <= 0 {
		return out, true
	}
	r := []rune(out)
	if len(r) <= maxLength {
		return out, true
	}
	cut := string(r[:maxLength])
	if i := strings.LastIndexAny(cut, " \n"); i > maxLength/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut), true
}
