// Package game implements the rules of a fill-in-the-blank party card game.
//
// The main type is Room, which owns the players, the prompt and response
// decks and the current Round. A Room is a value that is mutated only through
// its action methods (Join, Leave, Start, Submit, PickWinner). Each action
// checks the state machine before touching anything. The one failure that can
// happen part way through is a deck running dry, so callers discard a room
// that returned an error rather than keep using it.
//
// # Concurrency
//
// A Room is not safe for concurrent use. Callers that share rooms between
// goroutines treat a committed Room as an immutable snapshot and apply actions
// to a Clone, publishing the clone only if nothing else committed first. The
// engine package implements that protocol.
//
// # Round Lifecycle
//
//	Lobby -> AwaitingPrompt -> CollectingSubmissions -> Judging -> RoundComplete
//	                 ^                                                  |
//	                 +------------------ next judge --------------------+
//	                                                                    |
//	                                                                GameOver
//
// AwaitingPrompt and RoundComplete are transient: an action that enters them
// always leaves them before it returns, so observers only see Lobby,
// CollectingSubmissions, Judging and GameOver.
package game
