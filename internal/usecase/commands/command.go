package commands

import (
	"context"
	"fmt"

	"tg-wordcount-bot/internal/domain"
	"tg-wordcount-bot/internal/usecase/watch"
)

// Version задаёт версию бота в ответах help и about.
const Version = "1.0.0"

const author = "hyaticua"

// Request описывает разобранный вызов команды.
type Request struct {
	Community domain.CommunityID
	Name      string
	Args      []string
	Requester domain.User
	// Mentions содержит пользователей, упомянутых в сообщении с командой (из разметки платформы).
	Mentions []domain.User
}

type handlerFunc func(ctx context.Context, d *Dispatcher, session *watch.Session, req Request) (string, error)

// Command описывает команду бота.
type Command struct {
	Name        string
	Description string
	Syntax      string
	MinArgs     int
	MaxArgs     int
	MinAccess   domain.AccessLevel
	run         handlerFunc
}

// Help возвращает справку по команде.
func (c *Command) Help(prefix string) string {
	example := fmt.Sprintf("%s %s", prefix, c.Name)
	if c.Syntax != "" {
		example += " " + c.Syntax
	}
	return fmt.Sprintf("%s - %s\n%s\n\n", c.Name, c.Description, example)
}

func (c *Command) acceptsArgs(n int) bool {
	return n >= c.MinArgs && n <= c.MaxArgs
}

func builtinCommands() []*Command {
	return []*Command{
		{
			Name:        "count",
			Description: "Display a count of how many times user has said a watch word",
			Syntax:      "word @user",
			MinArgs:     2,
			MaxArgs:     2,
			run:         runCount,
		},
		{
			Name:        "add",
			Description: "Add a watch word to be indexed by the bot",
			Syntax:      "word",
			MinArgs:     1,
			MaxArgs:     1,
			MinAccess:   domain.AccessServerManager,
			run:         runAdd,
		},
		{
			Name:        "remove",
			Description: "Remove a watch word from the bot",
			Syntax:      "word",
			MinArgs:     1,
			MaxArgs:     1,
			MinAccess:   domain.AccessServerManager,
			run:         runRemove,
		},
		{
			Name:        "list",
			Description: "List all words that are watched by the bot",
			run:         runList,
		},
		{
			Name:        "stats",
			Description: "Show every watch word count for a user (you by default)",
			Syntax:      "[@user]",
			MaxArgs:     1,
			run:         runStats,
		},
		{
			Name:        "help",
			Description: "Get help for a command",
			Syntax:      "[command]",
			MaxArgs:     1,
			run:         runHelp,
		},
		{
			Name:        "about",
			Description: "About this bot",
			run:         runAbout,
		},
	}
}
