package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/iudanet/dreamjournal/internal/client/journal"
)

const shellHelp = `Commands:
  list                      show the journal
  refresh                   reload the journal from the server
  add                       add an entry (signed in only)
  delete N|id               delete an entry
  comment N|id [text]       comment on an entry (signed in only)
  uncomment N|id M|id       delete comment M of entry N
  nick [NAME]               show or set your nickname
  login [username]          sign in
  logout                    sign out
  status                    show who is signed in
  help                      this help
  quit                      leave the shell`

// Shell runs the interactive session. One mirror stays alive for the whole
// session; errors are printed and the loop goes on.
func (a *App) Shell(ctx context.Context) error {
	a.io.Println("Dream journal shell. Type 'help' for commands.")

	if err := a.Start(ctx); err != nil {
		a.render.Error(journal.Message(err))
	}
	a.show()

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := a.io.ReadInput(a.prompt())
		if err != nil {
			if errors.Is(err, io.EOF) {
				a.io.Println("")
				return nil
			}
			return fmt.Errorf("failed to read command: %w", err)
		}

		if quit := a.exec(ctx, line); quit {
			return nil
		}
	}
}

func (a *App) prompt() string {
	if identity, ok := a.session.Identity(); ok {
		return identity.Username + "@dreamjournal> "
	}
	return "dreamjournal> "
}

// exec выполняет одну команду shell, возвращает true для выхода
func (a *App) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := fields[0], fields[1:]

	var err error
	switch cmd {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		a.io.Println(shellHelp)
	case "list", "ls":
		a.show()
	case "refresh":
		if err = a.journal.Refresh(ctx); err == nil {
			a.show()
		}
	case "add":
		// Форма ввода предлагается только после входа
		if err = a.AddEntry(ctx, "", ""); err == nil {
			a.show()
		}
	case "delete", "rm":
		if len(args) != 1 {
			err = errors.New("usage: delete N|id")
			break
		}
		if err = a.DeleteEntry(ctx, args[0]); err == nil {
			a.show()
		}
	case "comment":
		if len(args) < 1 {
			err = errors.New("usage: comment N|id [text]")
			break
		}
		if err = a.AddComment(ctx, args[0], strings.Join(args[1:], " ")); err == nil {
			a.show()
		}
	case "uncomment":
		if len(args) != 2 {
			err = errors.New("usage: uncomment N|id M|id")
			break
		}
		if err = a.DeleteComment(ctx, args[0], args[1]); err == nil {
			a.show()
		}
	case "nick":
		if len(args) == 0 {
			a.io.Printf("Nickname: %s\n", nicknameOrAnon(a.journal.Nickname()))
			break
		}
		a.journal.SetNickname(strings.Join(args, " "))
		a.io.Printf("Nickname set to %s\n", a.journal.Nickname())
	case "login":
		if err = a.Login(ctx, firstArg(args)); err == nil {
			a.show()
		}
	case "logout":
		if err = a.Logout(ctx); err == nil {
			a.show()
		}
	case "status":
		err = a.printStatus(ctx)
	default:
		err = fmt.Errorf("unknown command %q, type 'help'", cmd)
	}

	if err != nil {
		a.render.Error(journal.Message(err))
	}
	return false
}
