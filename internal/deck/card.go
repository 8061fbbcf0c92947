package deck

import (
	"fmt"
	"strings"
)

// Blank is the marker a prompt uses for each gap players fill in.
const Blank = "___"

// Kind distinguishes prompt cards from response cards.
type Kind int

const (
	Prompt Kind = iota
	Response
)

// String returns the string representation of a kind
func (k Kind) String() string {
	switch k {
	case Prompt:
		return "prompt"
	case Response:
		return "response"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	if k != Prompt && k != Response {
		return nil, fmt.Errorf("invalid card kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind by name.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind parses "prompt" or "response", case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prompt":
		return Prompt, nil
	case "response":
		return Response, nil
	default:
		return 0, fmt.Errorf("invalid card kind: %q", s)
	}
}

// Card is an immutable piece of card text. Cards are compared by value, and
// the ID is unique across a catalog.
type Card struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
	Pack string `json:"pack,omitempty"`
}

// NewCard creates a new card
func NewCard(id string, kind Kind, text, pack string) Card {
	return Card{ID: id, Kind: kind, Text: text, Pack: pack}
}

// Pick returns how many response cards a prompt needs. Response cards and
// prompts without a marker count as one.
func (c Card) Pick() int {
	if c.Kind != Prompt {
		return 1
	}
	if n := strings.Count(c.Text, Blank); n > 0 {
		return n
	}
	return 1
}

// Fill substitutes answers into the prompt's blanks in order. Missing answers
// leave the blank in place; a prompt without blanks gets the answers appended.
func (c Card) Fill(answers ...string) string {
	if c.Kind != Prompt {
		return c.Text
	}
	if !strings.Contains(c.Text, Blank) {
		return strings.TrimSpace(c.Text + " " + strings.Join(answers, " "))
	}

	var b strings.Builder
	parts := strings.Split(c.Text, Blank)
	for i, part := range parts {
		b.WriteString(part)
		if i == len(parts)-1 {
			break
		}
		if i < len(answers) {
			b.WriteString(strings.TrimRight(answers[i], "."))
		} else {
			b.WriteString(Blank)
		}
	}
	return b.String()
}

// String returns the card text prefixed with its id, e.g. "base/r012: A lot."
func (c Card) String() string {
	return fmt.Sprintf("%s: %s", c.ID, c.Text)
}
