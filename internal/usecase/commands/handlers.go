package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"tg-wordcount-bot/internal/domain"
	"tg-wordcount-bot/internal/usecase/watch"
)

func runCount(ctx context.Context, d *Dispatcher, session *watch.Session, req Request) (string, error) {
	word := watch.NormalizeWord(req.Args[0])
	if !session.Registry().Has(word) {
		return "", replyError(ErrUnknownWord, fmt.Sprintf("Error: not indexing word %q", word))
	}
	user, err := d.resolveUser(session, req, req.Args[1])
	if err != nil {
		return "", err
	}
	count := session.Ledger().Count(user.ID, word)
	return fmt.Sprintf("%s has said %s %d times!", user.Name(), word, count), nil
}

func runAdd(ctx context.Context, d *Dispatcher, session *watch.Session, req Request) (string, error) {
	word := watch.NormalizeWord(req.Args[0])
	if word == "" {
		return "", replyError(ErrMalformedCommand, "Error: watch word must not be empty")
	}
	added, err := d.watch.AddWord(ctx, session.Community(), word)
	if err != nil {
		return "", err
	}
	if !added {
		return "", replyError(ErrDuplicateWord, fmt.Sprintf("Error: already indexing %s", word))
	}
	return fmt.Sprintf("Adding watch word %s", word), nil
}

func runRemove(ctx context.Context, d *Dispatcher, session *watch.Session, req Request) (string, error) {
	word := watch.NormalizeWord(req.Args[0])
	removed, err := d.watch.RemoveWord(ctx, session.Community(), word)
	if err != nil {
		return "", err
	}
	if !removed {
		return "", replyError(ErrUnknownWord, fmt.Sprintf("Error: not indexing %q", word))
	}
	return fmt.Sprintf("Removed watch word %s", word), nil
}

func runList(ctx context.Context, d *Dispatcher, session *watch.Session, req Request) (string, error) {
	lines := []string{"Watch words:"}
	words := session.Registry().List()
	if len(words) == 0 {
		lines = append(lines, "(none yet)")
	}
	for _, w := range words {
		switch w.State {
		case domain.ScanNeeded:
			lines = append(lines, w.Word+" (scan pending)")
		case domain.ScanRunning:
			lines = append(lines, w.Word+" (scanning history)")
		default:
			lines = append(lines, w.Word)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func runStats(ctx context.Context, d *Dispatcher, session *watch.Session, req Request) (string, error) {
	user := req.Requester
	if len(req.Args) == 1 {
		resolved, err := d.resolveUser(session, req, req.Args[0])
		if err != nil {
			return "", err
		}
		user = resolved
	}
	totals := session.Ledger().Totals(user.ID)
	words := make([]string, 0, len(totals))
	for w, n := range totals {
		if n > 0 && session.Registry().Has(w) {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return fmt.Sprintf("%s has not said any watch words yet", user.Name()), nil
	}
	sort.Slice(words, func(i, j int) bool {
		if totals[words[i]] != totals[words[j]] {
			return totals[words[i]] > totals[words[j]]
		}
		return words[i] < words[j]
	})
	var b strings.Builder
	fmt.Fprintf(&b, "%s has said:\n", user.Name())
	for _, w := range words {
		fmt.Fprintf(&b, "%s - %d times\n", w, totals[w])
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func runHelp(ctx context.Context, d *Dispatcher, session *watch.Session, req Request) (string, error) {
	if len(req.Args) == 1 {
		cmd, ok := d.commands[strings.ToLower(req.Args[0])]
		if !ok {
			return "", replyError(ErrUnknownCommand, "Error: command not found")
		}
		return strings.TrimSpace(cmd.Help(d.cfg.Prefix)), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Word Count Bot v%s\nAvailable Commands:\n\n", Version)
	for _, cmd := range d.order {
		b.WriteString(cmd.Help(d.cfg.Prefix))
	}
	return strings.TrimSpace(b.String()), nil
}

func runAbout(ctx context.Context, d *Dispatcher, session *watch.Session, req Request) (string, error) {
	return fmt.Sprintf("Word Count Bot v%s by %s", Version, author), nil
}
