package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"proctor-sync/internal/config"
	"proctor-sync/internal/examity"
	"proctor-sync/internal/logx"
	"proctor-sync/internal/store"
	"proctor-sync/internal/store/sqlite"
	"proctor-sync/internal/token"
)

// Remote is the slice of the API this tool uses.
type Remote interface {
	token.Fetcher
	GetUserInfo(ctx context.Context, token, userID string) (*examity.UserInfoResponse, error)
	DeleteUser(ctx context.Context, token, userID string) error
}

// stateStore is an options store that holds a resource until closed.
type stateStore interface {
	store.Options
	Close() error
}

func main() {
	var (
		email = flag.String("user", "", "remote user id (email)")
		del   = flag.Bool("delete", false, "delete the remote user instead of showing it")
	)
	flag.Parse()
	if *email == "" {
		log.Fatal("usage: userinfo -user someone@example.edu [-delete]")
	}

	cfg := config.Load()
	logger := logx.New(logx.Config{Service: "userinfo", Version: config.PluginVersion, Env: cfg.Env, Level: cfg.LogLevel, Format: "text"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	err := execute(ctx, os.Stdout, cfg, logger, openState, *email, *del)
	cancel()
	if err != nil {
		log.Fatal(err)
	}
}

func openState(path string) (stateStore, error) {
	return sqlite.NewStore(path)
}

// execute wires the client and token cache from cfg and runs the command. The
// state store is closed on every return path.
func execute(ctx context.Context, w io.Writer, cfg config.Config, logger *slog.Logger,
	open func(string) (stateStore, error), userID string, del bool,
) error {
	var opts store.Options = store.NewMemory()
	if cfg.StateDatabaseFile != "" {
		s, err := open(cfg.StateDatabaseFile)
		if err != nil {
			return fmt.Errorf("state db: %w", err)
		}
		defer s.Close()
		opts = s
	}

	cfg, err := config.ApplyOptions(ctx, cfg, opts)
	if err != nil {
		return fmt.Errorf("options: %w", err)
	}
	client, err := examity.New(examity.Options{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.APITimeout,
		UserAgent: config.PluginName + "/" + config.PluginVersion,
		Debug:     cfg.APIDebug,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}

	tokens := &token.Cache{
		Store:     opts,
		Fetcher:   client,
		ClientID:  cfg.ClientID,
		SecretKey: cfg.SecretKey,
		Location:  cfg.Location(),
		Logger:    logger,
	}
	return run(ctx, w, client, tokens, userID, del)
}

func run(ctx context.Context, w io.Writer, api Remote, tokens interface {
	Get(context.Context) (string, bool)
}, userID string, del bool) error {
	tok, ok := tokens.Get(ctx)
	if !ok {
		return errors.New("no access token: check EXAMITY_CLIENT_ID / EXAMITY_SECRET_KEY")
	}

	if del {
		if err := api.DeleteUser(ctx, tok, userID); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		fmt.Fprintf(w, "deleted %s\n", userID)
		return nil
	}

	info, err := api.GetUserInfo(ctx, tok, userID)
	if errors.Is(err, examity.ErrUserNotFound) {
		fmt.Fprintf(w, "%s: not found\n", userID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("user info: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}
