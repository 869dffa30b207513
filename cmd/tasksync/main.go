// ABOUTME: Entry point for the tasksync client CLI
// ABOUTME: One-shot task commands, the live board, export, and session management

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/tasksync/internal/client"
	"github.com/2389/tasksync/internal/config"
	"github.com/2389/tasksync/internal/engine"
	"github.com/2389/tasksync/internal/logging"
	"github.com/2389/tasksync/internal/tui"
)

// version is overridden with -ldflags at release time.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "ls", "list":
		err = cmdList(ctx, args)
	case "add":
		err = cmdAdd(ctx, args)
	case "done":
		err = cmdSetDone(ctx, args, true)
	case "reopen":
		err = cmdSetDone(ctx, args, false)
	case "edit":
		err = cmdEdit(ctx, args)
	case "rm", "delete":
		err = cmdDelete(ctx, args)
	case "watch", "board":
		err = cmdWatch(ctx)
	case "export":
		err = cmdExport(ctx, args)
	case "login":
		err = cmdLogin(ctx, args)
	case "logout":
		err = cmdLogout(ctx)
	case "whoami":
		err = cmdWhoami(ctx)
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		var cmdErr *engine.CommandError
		if errors.As(err, &cmdErr) {
			tui.Fail(os.Stderr, engine.UserMessage(err))
		} else {
			tui.Fail(os.Stderr, err.Error())
		}
		os.Exit(1)
	}
}

func printUsage() {
	yellow := color.New(color.FgYellow)

	fmt.Println("Usage: tasksync <command> [args]")
	fmt.Println()
	yellow.Println("Tasks:")
	fmt.Println("  ls                      List tasks")
	fmt.Println("  add <title...>          Add a task")
	fmt.Println("  done <id>               Mark a task complete")
	fmt.Println("  reopen <id>             Mark a task incomplete")
	fmt.Println("  edit <id> <title...>    Rename a task")
	fmt.Println("  rm <id>                 Delete a task")
	fmt.Println("  watch                   Open the live board")
	fmt.Println("  export [--html] [--out FILE] [--title TEXT]")
	fmt.Println("                          Print the board as Markdown or HTML")
	fmt.Println()
	yellow.Println("Session:")
	fmt.Println("  login <token|->         Sign in with a token (- reads stdin)")
	fmt.Println("  logout                  Sign out")
	fmt.Println("  whoami                  Show the signed-in user")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  TASKSYNC_URL            Server URL (overrides client.toml)")
	fmt.Println("  TASKSYNC_TOKEN          Bearer token (overrides the credential file)")
	fmt.Println("  TASKSYNC_CLIENT_CONFIG  Client config path")
}

// openClient loads config and builds the client stack without opening the feed.
func openClient(ctx context.Context) (*client.Client, error) {
	cfg, err := config.LoadClient(config.ClientPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger := logging.New(os.Stderr, cfg.Logging.Level, "text")
	return client.New(ctx, client.Options{Config: cfg, Logger: logger})
}
