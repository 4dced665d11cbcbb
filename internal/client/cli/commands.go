package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/client/services"
	"github.com/dmitrijs2005/linkkeeper/internal/common"
)

var errUsage = errors.New("usage")

func usage(text string) error {
	return fmt.Errorf("%w: %s", errUsage, text)
}

func (a *App) prompt(text string) (string, error) {
	return GetSimpleText(a.reader, text, a.out)
}

func (a *App) password(text string) ([]byte, error) {
	return GetPassword(a.out, text, a.readPassword)
}

func (a *App) credentials() (string, []byte, error) {
	email, err := a.prompt("Enter email")
	if err != nil {
		return "", nil, err
	}
	password, err := a.password("Enter password")
	if err != nil {
		return "", nil, err
	}
	return email, password, nil
}

// Register prompts for an email and password and creates an account.
func (a *App) Register(ctx context.Context) error {
	email, password, err := a.credentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.Register(ctx, email, password); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Account created, you can now log in.")
	return nil
}

// Login prompts for credentials and starts a session.
func (a *App) Login(ctx context.Context) error {
	email, password, err := a.credentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.Login(ctx, email, password); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Logged in as %s until %s\n", email, a.session.ExpiresAt().Local().Format(time.Kitchen))
	return nil
}

// Logout ends the session.
func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

// ChangePassword prompts for the current and the new password (twice).
func (a *App) ChangePassword(ctx context.Context) error {
	if !a.isLoggedIn() {
		return services.ErrNotLoggedIn
	}

	current, err := a.password("Current password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(current)

	next, err := a.password("New password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(next)

	again, err := a.password("Repeat new password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(again)

	if string(next) != string(again) {
		return errors.New("passwords do not match")
	}

	if err := a.auth.ChangePassword(ctx, current, next); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password changed.")
	return nil
}

// Profile prints the identity and link status per platform.
func (a *App) Profile(ctx context.Context) error {
	p, err := a.links.Profile(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Email:", p.Email)
	for _, platform := range slices.Sorted(maps.Keys(p.LinkedAccounts)) {
		status := "not linked"
		if p.LinkedAccounts[platform] {
			status = "linked"
		}
		fmt.Fprintf(a.out, "  %-12s %s\n", platform, status)
	}
	return nil
}

// Link stores a token for a platform: link <platform> [token]. The token is
// prompted for without echo when omitted.
func (a *App) Link(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usage("link <platform> [token]")
	}
	platform := args[0]

	var token string
	if len(args) == 2 {
		token = args[1]
	} else {
		t, err := a.password("Token for " + platform)
		if err != nil {
			return err
		}
		token = string(t)
		common.WipeByteArray(t)
	}

	if err := a.links.Link(ctx, platform, token); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Linked %s.\n", platform)
	return nil
}

// Unlink removes a platform link: unlink <platform>.
func (a *App) Unlink(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("unlink <platform>")
	}

	if err := a.links.Unlink(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Unlinked %s.\n", args[0])
	return nil
}

// Tokens prints all stored tokens, or one: tokens [platform].
func (a *App) Tokens(ctx context.Context, args []string) error {
	switch len(args) {
	case 0:
		tokens, err := a.links.Tokens(ctx)
		if err != nil {
			return err
		}
		if len(tokens) == 0 {
			fmt.Fprintln(a.out, "No linked accounts.")
			return nil
		}
		for _, platform := range slices.Sorted(maps.Keys(tokens)) {
			fmt.Fprintf(a.out, "  %-12s %s\n", platform, tokens[platform])
		}
		return nil
	case 1:
		token, err := a.links.Token(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "  %-12s %s\n", args[0], token)
		return nil
	default:
		return usage("tokens [platform]")
	}
}
