package models

// ConversationTurn is one user/bot exchange. Turns are owned by the
// calling session and consumed read-only by the prompt composer.
type ConversationTurn struct {
	User string `json:"user"`
	Bot  string `json:"bot"`
}
