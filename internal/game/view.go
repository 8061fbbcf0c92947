package game

import (
	"time"

	"github.com/lox/blankcards/internal/deck"
)

// View is what one viewer may see of a room. Hands are private, and who
// submitted what stays hidden until judging starts.
type View struct {
	RoomID      string           `json:"roomId"`
	Name        string           `json:"name"`
	Version     uint64           `json:"version"`
	Phase       Phase            `json:"phase"`
	Config      Config           `json:"config"`
	HostID      string           `json:"hostId"`
	Round       int              `json:"round"`
	JudgeID     string           `json:"judgeId,omitempty"`
	Prompt      *deck.Card       `json:"prompt,omitempty"`
	Pick        int              `json:"pick,omitempty"`
	Players     []PlayerView     `json:"players"`
	Hand        []deck.Card      `json:"hand,omitempty"`
	Submitted   []deck.Card      `json:"submitted,omitempty"`
	Submissions []SubmissionView `json:"submissions,omitempty"`
	WinnerID    string           `json:"winnerId,omitempty"`
	LastRound   *RoundResult     `json:"lastRound,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// PlayerView is the public part of a player.
type PlayerView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	HandSize  int       `json:"handSize"`
	Host      bool      `json:"host,omitempty"`
	Judge     bool      `json:"judge,omitempty"`
	Required  bool      `json:"required,omitempty"`
	Submitted bool      `json:"submitted,omitempty"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// SubmissionView is one answer as shown to the room during judging.
type SubmissionView struct {
	PlayerID string      `json:"playerId"`
	Cards    []deck.Card `json:"cards"`
	Text     string      `json:"text"`
}

// View builds the room as seen by viewerID. An empty or unknown viewer gets
// the spectator view with no hand.
func (r *Room) View(viewerID string) View {
	v := View{
		RoomID:    r.id,
		Name:      r.name,
		Version:   r.version,
		Phase:     r.Phase(),
		Config:    r.config,
		HostID:    r.hostID,
		WinnerID:  r.WinnerID(),
		LastRound: r.LastResult(),
		CreatedAt: r.createdAt,
	}

	round := r.round
	if round != nil {
		v.Round = round.Number
		v.JudgeID = round.JudgeID
	}
	live := round != nil && (round.Phase == CollectingSubmissions || round.Phase == Judging)
	if live {
		prompt := round.Prompt
		v.Prompt = &prompt
		v.Pick = prompt.Pick()
	}

	v.Players = make([]PlayerView, 0, len(r.players))
	for _, p := range r.players {
		pv := PlayerView{
			ID:       p.ID,
			Name:     p.Name,
			Score:    p.Score,
			HandSize: len(p.Hand),
			Host:     p.ID == r.hostID,
			JoinedAt: p.JoinedAt,
		}
		if live {
			pv.Judge = p.ID == round.JudgeID
			pv.Required = round.IsRequired(p.ID)
			pv.Submitted = round.HasSubmitted(p.ID)
		}
		v.Players = append(v.Players, pv)

		if p.ID == viewerID {
			v.Hand = append([]deck.Card(nil), p.Hand...)
		}
	}

	if !live {
		return v
	}
	if mine, ok := round.Submissions[viewerID]; ok {
		v.Submitted = append([]deck.Card(nil), mine...)
	}
	if round.Phase == Judging {
		for _, p := range r.players {
			cards, ok := round.Submissions[p.ID]
			if !ok {
				continue
			}
			answers := make([]string, len(cards))
			for i, c := range cards {
				answers[i] = c.Text
			}
			v.Submissions = append(v.Submissions, SubmissionView{
				PlayerID: p.ID,
				Cards:    append([]deck.Card(nil), cards...),
				Text:     round.Prompt.Fill(answers...),
			})
		}
	}
	return v
}

// Player returns the named player's public view.
func (v View) Player(id string) (PlayerView, bool) {
	for _, p := range v.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerView{}, false
}

// Summary is the lobby listing entry for a room.
type Summary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Phase      Phase     `json:"phase"`
	Players    int       `json:"players"`
	MaxPlayers int       `json:"maxPlayers"`
	ScoreLimit int       `json:"scoreLimit"`
	Round      int       `json:"round"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Summary returns the room's listing entry.
func (r *Room) Summary() Summary {
	s := Summary{
		ID:         r.id,
		Name:       r.name,
		Phase:      r.Phase(),
		Players:    len(r.players),
		MaxPlayers: r.config.MaxPlayers,
		ScoreLimit: r.config.ScoreLimit,
		CreatedAt:  r.createdAt,
	}
	if r.round != nil {
		s.Round = r.round.Number
	}
	return s
}
