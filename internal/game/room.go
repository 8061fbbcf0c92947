package game

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/coder/quartz"

	"github.com/lox/blankcards/internal/deck"
	"github.com/lox/blankcards/internal/randutil"
)

const maxRoomNameLength = 40

// Room is one game session: its players in join order, its two decks and
// the current round. See the package documentation for how rooms are shared.
type Room struct {
	id        string
	name      string
	config    Config
	hostID    string
	players   []*Player
	prompts   *deck.Deck
	responses *deck.Deck
	round     *Round
	last      *RoundResult
	rounds    int
	judgeSeat int // index into players of the current judge
	version   uint64
	closed    bool
	createdAt time.Time
	clock     quartz.Clock
}

// NewRoom creates an empty room in the Lobby phase with freshly shuffled
// decks drawn from catalog.
func NewRoom(id, name string, cfg Config, catalog *deck.Catalog, rng randutil.Source, clock quartz.Clock) (*Room, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxRoomNameLength {
		return nil, errorf(ErrInvalidConfig, "room name must be 1-%d characters", maxRoomNameLength)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkCatalog(cfg, catalog); err != nil {
		return nil, err
	}

	return &Room{
		id:        id,
		name:      name,
		config:    cfg,
		prompts:   deck.New(catalog, deck.Prompt, rng),
		responses: deck.New(catalog, deck.Response, rng),
		judgeSeat: -1,
		createdAt: clock.Now(),
		clock:     clock,
	}, nil
}

// checkCatalog rejects catalogs that could run dry: every seat holds a full
// hand while every non-judge has a maximal submission in play.
func checkCatalog(cfg Config, catalog *deck.Catalog) error {
	if catalog.Len(deck.Prompt) == 0 {
		return errorf(ErrCatalogTooSmall, "catalog has no prompts")
	}
	maxPick := catalog.MaxPick()
	if cfg.HandSize < maxPick {
		return errorf(ErrInvalidConfig, "hand size %d is smaller than the largest prompt (%d blanks)", cfg.HandSize, maxPick)
	}
	need := cfg.MaxPlayers*cfg.HandSize + (cfg.MaxPlayers-1)*maxPick
	if have := catalog.Len(deck.Response); have < need {
		return errorf(ErrCatalogTooSmall, "%d response cards for %d players needs at least %d", have, cfg.MaxPlayers, need)
	}
	return nil
}

// Clone returns a deep copy to act on as the room's next version. Its
// Version is one higher than the receiver's.
func (r *Room) Clone() *Room {
	c := *r
	c.players = make([]*Player, len(r.players))
	for i, p := range r.players {
		c.players[i] = p.clone()
	}
	c.prompts = r.prompts.Clone()
	c.responses = r.responses.Clone()
	if r.round != nil {
		c.round = r.round.clone()
	}
	c.version = r.version + 1
	return &c
}

func (r *Room) ID() string { return r.id }
func (r *Room) Name() string { return r.name }
func (r *Room) Config() Config { return r.config }
func (r *Room) HostID() string { return r.hostID }
func (r *Room) Version() uint64 { return r.version }
func (r *Room) CreatedAt() time.Time { return r.createdAt }
func (r *Room) PlayerCount() int { return len(r.players) }

// Closed reports whether the last player has left. A closed room rejects
// every action with ErrRoomNotFound.
func (r *Room) Closed() bool { return r.closed }

// Phase returns the phase of the current round, or Lobby before the game.
func (r *Room) Phase() Phase {
	if r.round == nil {
		return Lobby
	}
	return r.round.Phase
}

// Round returns a copy of the current round, or nil in the Lobby.
func (r *Room) Round() *Round {
	if r.round == nil {
		return nil
	}
	return r.round.clone()
}

// LastResult returns the most recently judged round, if any.
func (r *Room) LastResult() *RoundResult {
	if r.last == nil {
		return nil
	}
	res := *r.last
	res.Cards = slices.Clone(r.last.Cards)
	return &res
}

// Players returns copies of the players in join order.
func (r *Room) Players() []Player {
	out := make([]Player, len(r.players))
	for i, p := range r.players {
		out[i] = *p.clone()
	}
	return out
}

// Player returns a copy of one player.
func (r *Room) Player(id string) (Player, bool) {
	if p := r.player(id); p != nil {
		return *p.clone(), true
	}
	return Player{}, false
}

// Scores maps player id to score.
func (r *Room) Scores() map[string]int {
	scores := make(map[string]int, len(r.players))
	for _, p := range r.players {
		scores[p.ID] = p.Score
	}
	return scores
}

// WinnerID returns the player who ended the game, once it is over.
func (r *Room) WinnerID() string {
	if r.Phase() != GameOver {
		return ""
	}
	return r.round.WinnerID
}

func (r *Room) player(id string) *Player {
	if i := r.indexOf(id); i >= 0 {
		return r.players[i]
	}
	return nil
}

func (r *Room) indexOf(id string) int {
	return slices.IndexFunc(r.players, func(p *Player) bool { return p.ID == id })
}

// Join adds a player. Joining is allowed in the Lobby and while a round is
// being judged; a player who joins during judging is dealt a hand and plays
// from the next round.
func (r *Room) Join(playerID, name string) (*Player, error) {
	if r.closed {
		return nil, ErrRoomNotFound
	}
	switch r.Phase() {
	case GameOver:
		return nil, ErrGameOver
	case CollectingSubmissions:
		return nil, ErrGameAlreadyInProgress
	}
	if len(r.players) >= r.config.MaxPlayers {
		return nil, errorf(ErrRoomFull, "%d of %d seats taken", len(r.players), r.config.MaxPlayers)
	}
	name, err := r.validateName(name)
	if err != nil {
		return nil, err
	}

	p := &Player{ID: playerID, Name: name, JoinedAt: r.clock.Now()}
	if r.Phase() == Judging {
		if err := r.refill(p); err != nil {
			return nil, err
		}
	}
	r.players = append(r.players, p)
	if r.hostID == "" {
		r.hostID = p.ID
	}
	return p.clone(), nil
}

func (r *Room) validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return "", errorf(ErrInvalidName, "name must be 1-%d characters", MaxNameLength)
	}
	for _, p := range r.players {
		if strings.EqualFold(p.Name, name) {
			return "", errorf(ErrNameTaken, "%q", name)
		}
	}
	return name, nil
}

// Leave removes a player, discarding their hand and any submission. It
// reports false if the player was not in the room. When the last player
// leaves the room is closed.
func (r *Room) Leave(playerID string) (bool, error) {
	if r.closed {
		return false, ErrRoomNotFound
	}
	idx := r.indexOf(playerID)
	if idx < 0 {
		return false, nil
	}

	p := r.players[idx]
	if err := r.responses.DiscardAll(p.Hand); err != nil {
		return false, err
	}
	p.Hand = nil
	r.players = slices.Delete(r.players, idx, idx+1)

	// Keep judgeSeat pointing just before the next judge in rotation.
	switch {
	case idx < r.judgeSeat:
		r.judgeSeat--
	case idx == r.judgeSeat:
		r.judgeSeat = idx - 1
	}

	if len(r.players) == 0 {
		r.hostID = ""
		r.closed = true
		return true, nil
	}
	if r.hostID == playerID {
		r.hostID = r.players[idx%len(r.players)].ID
	}

	phase := r.Phase()
	if !phase.InProgress() {
		return true, nil
	}
	if len(r.players) < r.config.MinPlayers {
		return true, r.resetToLobby()
	}

	round := r.round
	if playerID == round.JudgeID {
		return true, r.restartRound()
	}

	round.dropRequired(playerID)
	if cards, ok := round.Submissions[playerID]; ok {
		delete(round.Submissions, playerID)
		if err := r.responses.DiscardAll(cards); err != nil {
			return true, err
		}
	}

	switch {
	case phase == CollectingSubmissions && round.complete():
		round.Phase = Judging
	case phase == CollectingSubmissions && len(round.Required) == 0:
		return true, r.restartRound()
	case phase == Judging && len(round.Submissions) == 0:
		return true, r.restartRound()
	}
	return true, nil
}

// Start begins the game. Only the host may start, from the Lobby, with at
// least MinPlayers present. Scores from an earlier game are reset.
func (r *Room) Start(playerID string) error {
	if r.closed {
		return ErrRoomNotFound
	}
	if r.player(playerID) == nil {
		return ErrPlayerNotFound
	}
	switch r.Phase() {
	case Lobby:
	case GameOver:
		return ErrGameOver
	default:
		return ErrAlreadyStarted
	}
	if playerID != r.hostID {
		return ErrNotHost
	}
	if len(r.players) < r.config.MinPlayers {
		return errorf(ErrNotEnoughPlayers, "need %d, have %d", r.config.MinPlayers, len(r.players))
	}

	r.last = nil
	r.judgeSeat = -1
	for _, p := range r.players {
		p.Score = 0
		if err := r.refill(p); err != nil {
			return err
		}
	}
	return r.startRound()
}

// Submit records the player's answer to the current prompt. A second
// submission in the same round replaces the first, whose cards are
// discarded. When every required player has submitted, judging begins.
func (r *Room) Submit(playerID string, cardIDs ...string) error {
	if r.closed {
		return ErrRoomNotFound
	}
	p := r.player(playerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	switch phase := r.Phase(); phase {
	case CollectingSubmissions:
	case Lobby:
		return ErrGameNotStarted
	case GameOver:
		return ErrGameOver
	default:
		return errorf(ErrWrongPhase, "cannot submit while %s", phase)
	}

	round := r.round
	if playerID == round.JudgeID {
		return ErrJudgeCannotSubmit
	}
	if !round.IsRequired(playerID) {
		return ErrNotInRound
	}
	if pick := round.Prompt.Pick(); len(cardIDs) != pick {
		return errorf(ErrWrongCardCount, "prompt needs %d, got %d", pick, len(cardIDs))
	}
	seen := make(map[string]bool, len(cardIDs))
	for _, id := range cardIDs {
		if seen[id] {
			return errorf(ErrDuplicateCard, "%s", id)
		}
		seen[id] = true
		if !p.HasCard(id) {
			return errorf(ErrCardNotInHand, "%s", id)
		}
	}

	if prior, ok := round.Submissions[playerID]; ok {
		if err := r.responses.DiscardAll(prior); err != nil {
			return err
		}
	}
	round.Submissions[playerID] = p.takeCards(cardIDs)
	if err := r.refill(p); err != nil {
		return err
	}

	if round.complete() {
		round.Phase = Judging
	}
	return nil
}

// PickWinner awards the round to winnerID and returns the updated scores.
// The room then either ends the game or deals the next round.
func (r *Room) PickWinner(judgeID, winnerID string) (map[string]int, error) {
	if r.closed {
		return nil, ErrRoomNotFound
	}
	if r.player(judgeID) == nil {
		return nil, ErrPlayerNotFound
	}
	switch phase := r.Phase(); phase {
	case Judging:
	case Lobby:
		return nil, ErrGameNotStarted
	case GameOver:
		return nil, ErrGameOver
	default:
		return nil, errorf(ErrWrongPhase, "cannot pick a winner while %s", phase)
	}

	round := r.round
	if judgeID != round.JudgeID {
		return nil, ErrNotJudge
	}
	cards, ok := round.Submissions[winnerID]
	winner := r.player(winnerID)
	if !ok || winner == nil {
		return nil, errorf(ErrInvalidWinner, "%s", winnerID)
	}

	winner.Score++
	round.WinnerID = winnerID
	round.Phase = RoundComplete
	r.last = newRoundResult(round, winner, cards)

	if err := r.discardRound(); err != nil {
		return nil, err
	}

	if winner.Score >= r.config.ScoreLimit {
		round.Phase = GameOver
		return r.Scores(), nil
	}
	if err := r.startRound(); err != nil {
		return nil, err
	}
	return r.Scores(), nil
}

func newRoundResult(round *Round, winner *Player, cards []deck.Card) *RoundResult {
	answers := make([]string, len(cards))
	for i, c := range cards {
		answers[i] = c.Text
	}
	return &RoundResult{
		Number:     round.Number,
		Prompt:     round.Prompt,
		JudgeID:    round.JudgeID,
		WinnerID:   winner.ID,
		WinnerName: winner.Name,
		Cards:      slices.Clone(cards),
		Text:       round.Prompt.Fill(answers...),
	}
}

// startRound rotates the judge and deals a prompt. It runs the
// AwaitingPrompt step and leaves the round collecting submissions.
func (r *Room) startRound() error {
	r.judgeSeat = (r.judgeSeat + 1) % len(r.players)
	judge := r.players[r.judgeSeat]
	r.rounds++

	round := &Round{
		Number:      r.rounds,
		Phase:       AwaitingPrompt,
		JudgeID:     judge.ID,
		Submissions: make(map[string][]deck.Card),
		StartedAt:   r.clock.Now(),
	}
	prompt, err := r.prompts.Draw()
	if err != nil {
		return outOfCards(err)
	}
	round.Prompt = prompt
	for _, p := range r.players {
		if p.ID != judge.ID {
			round.Required = append(round.Required, p.ID)
		}
	}
	round.Phase = CollectingSubmissions
	r.round = round
	return nil
}

// discardRound returns the prompt and every submission to their decks.
func (r *Room) discardRound() error {
	round := r.round
	for _, p := range r.players {
		if cards, ok := round.Submissions[p.ID]; ok {
			if err := r.responses.DiscardAll(cards); err != nil {
				return err
			}
		}
	}
	round.Submissions = make(map[string][]deck.Card)
	return r.prompts.Discard(round.Prompt)
}

// restartRound abandons the current round and deals a new one to the next
// judge.
func (r *Room) restartRound() error {
	if err := r.discardRound(); err != nil {
		return err
	}
	return r.startRound()
}

// resetToLobby ends an in-progress game. Scores are kept until the next
// Start.
func (r *Room) resetToLobby() error {
	if err := r.discardRound(); err != nil {
		return err
	}
	for _, p := range r.players {
		if err := r.responses.DiscardAll(p.Hand); err != nil {
			return err
		}
		p.Hand = nil
	}
	r.round = nil
	r.judgeSeat = -1
	return nil
}

// refill draws until the player holds a full hand.
func (r *Room) refill(p *Player) error {
	need := r.config.HandSize - len(p.Hand)
	if need <= 0 {
		return nil
	}
	cards, err := r.responses.DrawN(need)
	if err != nil {
		return outOfCards(err)
	}
	p.Hand = append(p.Hand, cards...)
	return nil
}

func outOfCards(err error) error {
	return fmt.Errorf("%w: %w", ErrOutOfCards, err)
}
