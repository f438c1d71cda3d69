package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/flitsinc/taskbridge/internal/config"
	"github.com/flitsinc/taskbridge/internal/idgen"
	"github.com/flitsinc/taskbridge/internal/journal"
	"github.com/flitsinc/taskbridge/internal/oracle"
	"github.com/flitsinc/taskbridge/internal/planner"
	"github.com/flitsinc/taskbridge/internal/session"
	"github.com/flitsinc/taskbridge/internal/transport"
	"github.com/flitsinc/taskbridge/internal/vault"
)

func main() {
	cfg := config.Load()
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("create data dir: %v", err)
	}
	if err := os.MkdirAll(cfg.AttachDir, 0o755); err != nil {
		log.Fatalf("create attachment dir: %v", err)
	}

	db, err := journal.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	var decider planner.Oracle
	if cfg.OracleBaseURL != "" && cfg.OracleModel != "" {
		client, err := oracle.NewClient(oracle.Config{
			BaseURL: cfg.OracleBaseURL,
			Model:   cfg.OracleModel,
			APIKey:  cfg.OracleAPIKey,
			Timeout: cfg.OracleTimeout,
		})
		if err != nil {
			log.Printf("oracle disabled: %v", err)
		} else {
			decider = client
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	proto := transport.NewClient(cfg.EndpointURL, transport.WithToken(cfg.Token))
	resolver := vault.New(cfg.AttachDir)

	app := &app{
		db:       db,
		proto:    proto,
		resolver: resolver,
		decider:  decider,
	}
	app.newSession(ctx)
	defer app.close()

	fmt.Printf("taskbridge connected to %s\n", cfg.EndpointURL)
	fmt.Println("commands: /new, /resume <task-id>, /end, /quit")

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return app.inputLoop(gctx)
	})
	group.Go(func() error {
		<-gctx.Done()
		return nil
	})
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Printf("exit: %v", err)
	}
}

type app struct {
	db       *sql.DB
	proto    transport.Protocol
	resolver planner.AttachmentResolver
	decider  planner.Oracle

	current *session.Session
}

func (a *app) newSession(ctx context.Context) {
	if a.current != nil {
		a.current.Close()
	}
	sessionID := idgen.New()
	sess := session.New(a.proto, session.Options{
		ID:       sessionID,
		Oracle:   a.decider,
		Resolver: a.resolver,
		Hooks: planner.Hooks{
			OnSystem:   func(text string) { fmt.Printf("[system] %s\n", text) },
			OnAskUser:  func(question string) { fmt.Printf("[agent asks] %s\n", question) },
			OnSendEcho: func(text string) { fmt.Printf("[sent] %s\n", text) },
		},
		Sink: journal.New(a.db, sessionID),
	})
	sess.Start(ctx)
	a.current = sess
}

func (a *app) close() {
	if a.current != nil {
		a.current.Close()
	}
}

func (a *app) inputLoop(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case line == "/quit":
			return context.Canceled
		case line == "/new":
			a.newSession(ctx)
			fmt.Println("started a new conversation")
		case strings.HasPrefix(line, "/resume "):
			taskID := strings.TrimSpace(strings.TrimPrefix(line, "/resume "))
			a.newSession(ctx)
			if err := a.current.Resume(ctx, taskID); err != nil {
				fmt.Printf("[system] resume failed: %v\n", err)
			}
		case line == "/end":
			if err := a.current.Cancel(ctx); err != nil {
				fmt.Printf("[system] %v\n", err)
			}
		default:
			a.current.UserMessage(line)
			if a.decider == nil {
				a.current.SendDirect(ctx, line, nil)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	// Stdin closed: treat like /quit.
	return context.Canceled
}
