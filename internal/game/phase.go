package game

import "fmt"

// Phase is the state of a room's current round.
type Phase int

const (
	Lobby Phase = iota
	AwaitingPrompt
	CollectingSubmissions
	Judging
	RoundComplete
	GameOver
)

var phaseNames = map[Phase]string{
	Lobby:                 "lobby",
	AwaitingPrompt:        "awaiting_prompt",
	CollectingSubmissions: "collecting_submissions",
	Judging:               "judging",
	RoundComplete:         "round_complete",
	GameOver:              "game_over",
}

// String returns the string representation of a phase
func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	name, ok := phaseNames[p]
	if !ok {
		return nil, fmt.Errorf("invalid phase %d", int(p))
	}
	return []byte(name), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	for phase, name := range phaseNames {
		if name == string(text) {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("invalid phase %q", text)
}

// InProgress reports whether a game is being played.
func (p Phase) InProgress() bool {
	return p > Lobby && p < GameOver
}
