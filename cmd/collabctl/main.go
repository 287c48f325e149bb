// collabctl is the operator CLI of collabd.
//
//	collabctl list
//	collabctl show <session-id>
//	collabctl tail [-user name] <session-id>
//	collabctl snapshots [-db path] [session-id]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gookit/color"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "collabctl: %v\n", err)
	}
	os.Exit(code)
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: collabctl <command> [arguments]

commands:
  list                          live sessions
  show <session-id>             participants and document of a session
  tail [-user name] <session-id>  join a session and print its traffic
  snapshots [-db path] [id]     archived sessions
`)
}

func run(args []string) (int, error) {
	config, err := LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	color.Enable = config.Colours

	if len(args) == 0 {
		usage()
		return exitConfig, nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := newAPIClient(config.Addr)
	out := os.Stdout

	switch args[0] {
	case "list":
		err = listSessions(ctx, client, out)
	case "show":
		id, ferr := singleArg(flag.NewFlagSet("show", flag.ContinueOnError), args[1:])
		if ferr != nil {
			return exitConfig, ferr
		}
		err = showSession(ctx, client, id, out)
	case "tail":
		fs := flag.NewFlagSet("tail", flag.ContinueOnError)
		user := fs.String("user", "collabctl", "display name used to join")
		id, ferr := singleArg(fs, args[1:])
		if ferr != nil {
			return exitConfig, ferr
		}
		err = tailSession(ctx, client, id, *user, out)
	case "snapshots":
		fs := flag.NewFlagSet("snapshots", flag.ContinueOnError)
		db := fs.String("db", config.BadgerFilepath, "read a badger archive directly instead of the server")
		if ferr := fs.Parse(args[1:]); ferr != nil {
			return exitConfig, ferr
		}
		err = listSnapshots(ctx, client, *db, fs.Arg(0), out)
	default:
		usage()
		return exitConfig, fmt.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		return exitRuntime, err
	}
	return exitOK, nil
}

func singleArg(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s expects exactly one session id", fs.Name())
	}
	return fs.Arg(0), nil
}
