// Package cli implements the interactive linkkeeper command-line client.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/client/client"
	"github.com/dmitrijs2005/linkkeeper/internal/client/config"
	"github.com/dmitrijs2005/linkkeeper/internal/client/services"
	"golang.org/x/term"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config  *config.Config
	session *services.Session
	auth    services.AuthService
	links   services.LinkService

	reader       *bufio.Reader
	out          io.Writer
	readPassword func() ([]byte, error)

	mu   sync.Mutex
	mode Mode
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewHTTPClient(c.ServerEndpointAddr, c.RequestTimeout)
	if err != nil {
		return nil, err
	}

	session := services.NewSession()
	app := newApp(c, session, services.NewAuthService(apiClient, session),
		services.NewLinkService(apiClient, session), os.Stdin, os.Stdout)
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		app.readPassword = func() ([]byte, error) { return term.ReadPassword(fd) }
	}
	return app, nil
}

func newApp(c *config.Config, s *services.Session, as services.AuthService, ls services.LinkService,
	in io.Reader, out io.Writer) *App {
	reader := bufio.NewReader(in)
	a := &App{
		config:  c,
		session: s,
		auth:    as,
		links:   ls,
		reader:  reader,
		out:     out,
	}
	// without a terminal, passwords are read as plain lines
	a.readPassword = func() ([]byte, error) {
		line, err := GetSimpleText(reader, "", io.Discard)
		return []byte(line), err
	}
	return a
}

// Run probes the server in the background and serves the REPL until the
// user exits or input ends.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fmt.Fprintln(a.out, "Welcome to linkkeeper CLI (type 'help' for commands)")

	a.checkOnline(ctx)
	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, a.reader, a.out)

	// leaving the CLI ends the session on the server as well
	_ = a.auth.Logout(context.WithoutCancel(ctx))
}

func (a *App) isLoggedIn() bool {
	return a.session.LoggedIn()
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode != mode {
		a.mode = mode
		fmt.Fprintf(a.out, "\nSwitched to %s mode\n", mode)
	}
}

func (a *App) getMode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) getStatus() string {
	s := ""
	if email := a.session.Email(); email != "" && a.isLoggedIn() {
		s = email + " "
	}
	s += string(a.getMode())
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) checkOnline(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := a.auth.Ping(ctx); err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}

// StartOnlineStatusWatcher pings the server every interval until ctx ends.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}
