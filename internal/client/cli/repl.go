package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/linkkeeper/internal/client/client"
	"github.com/dmitrijs2005/linkkeeper/internal/client/services"
)

// execIface defines the command surface the REPL dispatches to. App
// satisfies it; tests provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	Profile(ctx context.Context) error
	Link(ctx context.Context, args []string) error
	Unlink(ctx context.Context, args []string) error
	Tokens(ctx context.Context, args []string) error
}

const (
	helpLoggedOut = "Available commands: register, login, exit"
	helpLoggedIn  = "Available commands: profile, link <platform> [token], unlink <platform>, tokens [platform], passwd, logout, exit"
)

// runREPL reads commands from r until EOF, "exit" or "quit" and dispatches
// them to a. Command errors are printed and never end the loop.
func runREPL(ctx context.Context, a execIface, statusFn func() string, r *bufio.Reader, out io.Writer) {
	for {
		fmt.Fprintf(out, "lk %s> ", statusFn())

		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(out)
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(out, helpLoggedIn)
			} else {
				fmt.Fprintln(out, helpLoggedOut)
			}
		case "register":
			cmdErr = a.Register(ctx)
		case "login":
			cmdErr = a.Login(ctx)
		case "logout":
			cmdErr = a.Logout(ctx)
		case "passwd":
			cmdErr = a.ChangePassword(ctx)
		case "profile":
			cmdErr = a.Profile(ctx)
		case "link":
			cmdErr = a.Link(ctx, args)
		case "unlink":
			cmdErr = a.Unlink(ctx, args)
		case "tokens":
			cmdErr = a.Tokens(ctx, args)
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return
		default:
			fmt.Fprintln(out, "Unknown command:", cmd)
		}

		if cmdErr != nil {
			fmt.Fprintln(out, "Error:", describe(cmdErr))
		}
	}
}

// describe turns an error into a short user-facing message.
func describe(err error) string {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, services.ErrNotLoggedIn):
		return "not logged in (use 'login')"
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	case errors.Is(err, client.ErrUnavailable):
		return "server unavailable, try again later"
	default:
		return err.Error()
	}
}
