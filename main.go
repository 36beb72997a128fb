package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"chatsync/internal/config"
	"chatsync/internal/events"
	"chatsync/internal/fetch"
	"chatsync/internal/messages"
	"chatsync/internal/models"
	"chatsync/internal/observ"
	"chatsync/internal/schema"
	"chatsync/internal/storage"
	"chatsync/internal/theme"
	"chatsync/internal/timefmt"
	"chatsync/internal/users"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type options struct {
	channel string
	send    string
	image   string
	invite  string
	theme   string
	events  string
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("chatsync", flag.ContinueOnError)
	fs.StringVar(&opts.channel, "channel", "", "Channel to open and print")
	fs.StringVar(&opts.send, "send", "", "Message text to send to -channel")
	fs.StringVar(&opts.image, "image", "", "Image URL or data URI to attach to -send")
	fs.StringVar(&opts.invite, "invite", "", "User id to invite to -channel")
	fs.StringVar(&opts.theme, "theme", "", "Set the theme: light, dark or toggle")
	fs.StringVar(&opts.events, "events", "", "File with pushed events to apply, - for stdin")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if (opts.send != "" || opts.image != "" || opts.invite != "") && opts.channel == "" {
		return options{}, errors.New("-send, -image and -invite require -channel")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	classes := theme.NewClasses()
	themes := theme.New(db, classes, logger)
	if err := themes.Init(); err != nil {
		return err
	}
	if err := applyTheme(themes, opts.theme); err != nil {
		return err
	}

	client := fetch.New(fetch.Config{BaseURL: cfg.BaseURL, Token: cfg.Token, Timeout: cfg.RequestTimeout}, logger)
	validator := schema.New()
	formatter := timefmt.New(cfg.Locale, cfg.Timezone)

	userStore := users.New(users.Config{
		Fetch:     client,
		Schema:    validator,
		Formatter: formatter,
		Snapshots: db,
		Logger:    logger.Named("users"),
	})
	messageStore := messages.New(messages.Config{
		Fetch:     client,
		Schema:    validator,
		Snapshots: db,
		Logger:    logger.Named("messages"),
	})

	if err := userStore.Restore(); err != nil {
		logger.Warn("failed to restore users", zap.Error(err))
	}
	if err := messageStore.Restore(); err != nil {
		logger.Warn("failed to restore latest messages", zap.Error(err))
	}

	// A failing store must not cancel the other one's request.
	var g errgroup.Group
	g.Go(func() error { return userStore.Init(ctx) })
	g.Go(func() error { return messageStore.Init(ctx) })
	if err := g.Wait(); err != nil {
		// Restored snapshots are still worth printing when offline.
		logger.Warn("initial sync incomplete", zap.Error(err))
	}

	if opts.events != "" {
		var src io.Reader = os.Stdin
		if opts.events != "-" {
			f, err := os.Open(opts.events)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			src = f
		}
		applier := events.NewApplier(userStore, messageStore, validator, logger.Named("events"))
		if err := applier.Pump(ctx, events.NewJSONSource(src)); err != nil {
			return fmt.Errorf("apply events: %w", err)
		}
	}

	if opts.channel != "" {
		if opts.invite != "" {
			if err := userStore.InviteMember(ctx, opts.channel, opts.invite); err != nil {
				return err
			}
			fmt.Fprintf(out, "invited %s to #%s\n", userStore.UserName(opts.invite), opts.channel)
		}
		if opts.send != "" || opts.image != "" {
			if _, err := messageStore.SendMessage(ctx, opts.channel, opts.send, opts.image); err != nil {
				return err
			}
		}
		if err := messageStore.LoadChannel(ctx, opts.channel); err != nil {
			return err
		}
		printChannel(out, opts.channel, userStore, messageStore)
		return nil
	}

	printLatest(out, themes.Theme(), formatter, userStore, messageStore)
	return nil
}

func applyTheme(s *theme.Service, value string) error {
	switch value {
	case "":
		return nil
	case "toggle":
		return s.Toggle()
	default:
		t, err := theme.Parse(value)
		if err != nil {
			return err
		}
		return s.SetTheme(t)
	}
}

func printLatest(out io.Writer, t theme.Theme, f *timefmt.Formatter, u *users.Store, m *messages.Store) {
	fmt.Fprintf(out, "theme: %s\n", t)

	latest := m.LatestByChannel()
	channels := make([]string, 0, len(latest))
	for id := range latest {
		channels = append(channels, id)
	}
	slices.Sort(channels)

	for _, id := range channels {
		msg := latest[id]
		fmt.Fprintf(out, "#%s  %s  %s  %s\n", id, f.RelativeNow(msg.SentAt), u.SenderName(msg.SenderID), preview(msg))
	}

	online := u.OnlineUsers()
	if len(online) > 0 {
		fmt.Fprintf(out, "online: %d\n", len(online))
	}
}

func printChannel(out io.Writer, channel string, u *users.Store, m *messages.Store) {
	fmt.Fprintf(out, "#%s\n", channel)
	for _, msg := range m.ChatMessages() {
		fmt.Fprintf(out, "[%s] %s (%s): %s\n", u.SentAt(msg), u.SenderName(msg.SenderID), u.Status(msg.SenderID), preview(msg))
	}
}

func preview(msg models.Message) string {
	if msg.Text == "" && msg.Image != "" {
		return "[image]"
	}
	return msg.Text
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
