package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/podkeep/podkeep/internal/app"
)

const usage = `Usage: podkeep [-c config.yml] <command>

Commands:
  feed <url>            list the playable episodes of a feed
  latest <url>          download the newest episode of a feed
  get <audio-url> [title]
                        download a single episode by audio URL
  list                  list downloaded episodes
  rm <episode-id>       delete one download
  clear                 delete all downloads
  stats                 show library and cache counters
`

func main() {
	cfgFileName := flag.String("c", "config.yml", "Path to config file")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := app.New(*cfgFileName)
	if err := a.Init(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "podkeep: %s\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := run(ctx, a, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "podkeep: %s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, args []string) error {
	switch args[0] {
	case "feed":
		if len(args) < 2 {
			return fmt.Errorf("feed: missing url")
		}

		return a.Feed(ctx, args[1])
	case "latest":
		if len(args) < 2 {
			return fmt.Errorf("latest: missing url")
		}

		return a.Latest(ctx, args[1])
	case "get":
		if len(args) < 2 {
			return fmt.Errorf("get: missing audio url")
		}
		title := ""
		if len(args) > 2 {
			title = args[2]
		}

		return a.Get(ctx, args[1], title)
	case "list":
		return a.List(ctx)
	case "rm":
		if len(args) < 2 {
			return fmt.Errorf("rm: missing episode id")
		}

		return a.Remove(ctx, args[1])
	case "clear":
		return a.Clear(ctx)
	case "stats":
		return a.Stats(ctx)
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}
