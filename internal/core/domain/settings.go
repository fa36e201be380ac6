package domain

// Settings is the part of the configuration document re-read at the start
// of every cycle.
type Settings struct {
	ChannelID       string
	Identities      []Identity
	OperatorAddress string
	Headless        bool
}
