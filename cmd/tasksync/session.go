// ABOUTME: Session commands: login, logout, and whoami
// ABOUTME: Persist or clear the credential file through the session manager

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/2389/tasksync/internal/tui"
)

func cmdLogin(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: tasksync login <token|->")
	}
	token := args[0]
	if token == "-" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("reading token: %w", err)
		}
		token = line
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("empty token")
	}

	c, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	sess, err := c.Session.Login(ctx, token)
	if err != nil {
		return err
	}
	tui.OK(os.Stdout, "signed in as "+sess.Principal.DisplayName())
	return nil
}

func cmdLogout(ctx context.Context) error {
	c, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Session.Logout(ctx); err != nil {
		return err
	}
	tui.OK(os.Stdout, "signed out")
	return nil
}

func cmdWhoami(ctx context.Context) error {
	c, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	sess := c.Session.Session()
	if sess == nil {
		return errNotSignedIn
	}

	p := sess.Principal
	lines := []string{
		color.New(color.FgCyan, color.Bold).Sprint(p.DisplayName()),
		"ID:      " + p.ID,
	}
	if p.Email != "" {
		lines = append(lines, "Email:   "+p.Email)
	}
	if avatar := p.Avatar(); avatar != nil {
		lines = append(lines, "Avatar:  "+*avatar)
	}
	lines = append(lines, "Source:  "+sess.Source)
	if sess.ExpiresAt != nil {
		lines = append(lines, fmt.Sprintf("Expires: %s (in %s)",
			sess.ExpiresAt.Local().Format("Jan 02, 2006 15:04"),
			time.Until(*sess.ExpiresAt).Round(time.Minute)))
	}
	lines = append(lines, "Server:  "+c.Config.Server.URL)
	tui.Panel(os.Stdout, lines)
	return nil
}
