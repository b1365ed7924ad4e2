package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// Level is the minimum access level whose menu lists the command.
	Level   int
	Hidden  bool
	Aliases []string
}

// VisibleTo reports whether the command belongs in the menu of level.
func (c Command) VisibleTo(level int) bool {
	return !c.Hidden && level >= c.Level
}
