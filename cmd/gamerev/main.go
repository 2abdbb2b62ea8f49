package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alphabot-ai/gamerev/internal/auth"
	"github.com/alphabot-ai/gamerev/internal/client"
	"github.com/alphabot-ai/gamerev/internal/config"
	httpapp "github.com/alphabot-ai/gamerev/internal/http"
	"github.com/alphabot-ai/gamerev/internal/ident"
	"github.com/alphabot-ai/gamerev/internal/rate"
	"github.com/alphabot-ai/gamerev/internal/revision"
	"github.com/alphabot-ai/gamerev/internal/shadow"
	"github.com/alphabot-ai/gamerev/internal/store"
	"github.com/alphabot-ai/gamerev/internal/store/memory"
	"github.com/alphabot-ai/gamerev/internal/store/sqlite"
	"github.com/alphabot-ai/gamerev/internal/telemetry"
	"github.com/google/uuid"
)

// CLIConfig holds the CLI client identity persisted to disk.
type CLIConfig struct {
	BaseURL string `json:"base_url"`
	UserID  string `json:"user_id,omitempty"`
	UID     string `json:"uid,omitempty"`
	Token   string `json:"token,omitempty"`
}

func main() {
	if len(os.Args) < 2 {
		runServer()
		return
	}

	cmd := os.Args[1]

	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		printUsage()
		return
	}

	if cmd == "-v" || cmd == "--version" || cmd == "version" {
		fmt.Println("gamerev v0.1.0")
		return
	}

	if strings.HasPrefix(cmd, "-") {
		runServer()
		return
	}

	args := os.Args[2:]

	switch cmd {
	case "server", "serve":
		runServer()
	case "issue":
		cmdIssue(args)
	case "use", "login":
		cmdUse(args)
	case "status", "whoami":
		cmdStatus(args)
	case "create", "new":
		cmdCreate(args)
	case "games", "list":
		cmdGames(args)
	case "show":
		cmdShow(args)
	case "revs":
		cmdRevs(args)
	case "rev":
		cmdRev(args)
	case "append", "play":
		cmdAppend(args)
	case "restore":
		cmdRestore(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`gamerev - Revision chains for turn-based game sessions

Usage: gamerev <command> [options]

Quick Start:
  gamerev issue                                     # Pair an anonymous identity (sqlite)
  gamerev create
  gamerev append --game <id> --rev 0 --set score=10

Identity:
  issue               Create an anonymous uid/token pair in the local database
  use                 Save the identity and server URL used by client commands
  status              Show the saved identity

Client Commands:
  create              Create a game owned by you
  games               List games (restlike API)
  show                Show a game summary
  revs                List a game's revisions
  rev                 Show one revision
  append              Append a revision on top of a known base
  restore             Restore the tip's shadow state (rest API)

Server:
  server              Start the gamerev server (default if no command)

Examples:
  gamerev use --url http://localhost:8080 --uid a1 --token <uuid>
  gamerev use --url http://localhost:8080 --user-id <uuid>
  gamerev append --game <id> --rev 3 --ops '[{"op":"set","path":"pile.-1","value":"7S"}]'
  gamerev append --game <id> --rev 4 --set score=12 --shadow '{"seed":42}'
  gamerev rev --game <id> --rev 4

Environment Variables (server):
  GAMEREV_ADDR                 Listen address (default: 127.0.0.1:8080, or :$PORT)
  GAMEREV_API                  API variant: rest or restlike (default: restlike)
  GAMEREV_IDENTITY             Identity strategy: uuid or anonymous
  GAMEREV_ENFORCE_PAIRING      Check uid/token pairs against the store (anonymous + sqlite)
  GAMEREV_STORE                Store driver: memory or sqlite (default: memory)
  GAMEREV_DB                   Database path (default: gamerev.db)
  GAMEREV_SHADOW_SECRET        Secret for sealing shadow state
  GAMEREV_INITIAL_STATE        JSON document for revision 0 (default: {})
  GAMEREV_OTEL_ENDPOINT        OTLP/HTTP trace endpoint (tracing off when empty)
  GAMEREV_RL_CREATE_PER_MIN    Game creations per minute (default: 30)
  GAMEREV_RL_REVISION_PER_MIN  Revision appends per minute (default: 600)`)
}

// ============================================================================
// SERVER
// ============================================================================

func runServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	shutdownTracing, err := telemetry.Setup(context.Background(), "gamerev", cfg.OTelEndpoint)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	sealer, err := shadow.NewSealer([]byte(cfg.ShadowSecret))
	if err != nil {
		log.Fatalf("failed to initialize shadow sealer: %v", err)
	}
	initial, err := revision.StaticState(json.RawMessage(cfg.InitialState))
	if err != nil {
		log.Fatalf("invalid initial state: %v", err)
	}
	games := revision.NewService(st, sealer, revision.WithInitialState(initial))

	authSvc := auth.NewService(st)
	validator, err := ident.NewValidator(strategy(cfg.Identity), authSvc, cfg.EnforcePairing)
	if err != nil {
		log.Fatalf("failed to initialize identity validator: %v", err)
	}

	server, err := httpapp.NewServer(games, validator, rate.NewMemory(), cfg, log.Default())
	if err != nil {
		log.Fatalf("failed to initialize server: %v", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("gamerev (%s API, %s identity, %s store) listening on %s",
			cfg.API, cfg.Identity, cfg.StoreDriver, cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	if err := shutdownTracing(ctx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}

func openStore(cfg config.Config) (store.Store, error) {
	if cfg.StoreDriver == config.StoreSQLite {
		return sqlite.Open(cfg.DBPath)
	}
	return memory.New(), nil
}

func strategy(name string) ident.Strategy {
	if name == config.IdentityUUID {
		return ident.UUIDStrategy{}
	}
	return ident.AnonymousStrategy{}
}

// ============================================================================
// IDENTITY COMMANDS
// ============================================================================

func cmdIssue(args []string) {
	fs := flag.NewFlagSet("issue", flag.ExitOnError)
	dbPath := fs.String("db", envOr("GAMEREV_DB", "gamerev.db"), "Database path")
	url := fs.String("url", "", "Also save the identity for this server URL")
	fs.Parse(args)

	st, err := sqlite.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	id, err := auth.NewService(st).IssueAnonymous(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Issued anonymous identity\n")
	fmt.Printf("  uid:   %s\n", id.UserID)
	fmt.Printf("  token: %s\n", id.Token)

	if *url != "" {
		cfg := CLIConfig{BaseURL: strings.TrimSuffix(*url, "/"), UID: id.UserID, Token: id.Token.String()}
		if err := saveCLIConfig(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  Saved: %s\n", cliConfigPath())
	}
}

func cmdUse(args []string) {
	fs := flag.NewFlagSet("use", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "gamerev server URL")
	userID := fs.String("user-id", "", "User ID for the rest API (version 4 UUID)")
	uid := fs.String("uid", "", "Anonymous user id for the restlike API (a<n>)")
	token := fs.String("token", "", "Access token paired with --uid")
	fs.Parse(args)

	cfg := CLIConfig{BaseURL: strings.TrimSuffix(*url, "/")}
	switch {
	case *userID != "":
		if _, ok := ident.ParseUUID4(*userID); !ok {
			fmt.Fprintln(os.Stderr, "Error: --user-id must be a version 4 UUID")
			os.Exit(1)
		}
		cfg.UserID = *userID
	case *uid != "":
		if !ident.ValidAnonymousID(*uid) {
			fmt.Fprintln(os.Stderr, "Error: --uid must be 'a' followed by a positive integer")
			os.Exit(1)
		}
		if _, ok := ident.ParseUUID4(*token); !ok {
			fmt.Fprintln(os.Stderr, "Error: --token must be a version 4 UUID")
			os.Exit(1)
		}
		cfg.UID, cfg.Token = *uid, *token
	default:
		fmt.Fprintln(os.Stderr, "Error: --user-id or --uid/--token is required")
		fmt.Fprintln(os.Stderr, "Usage: gamerev use [--url <server-url>] (--user-id <uuid> | --uid <a1> --token <uuid>)")
		os.Exit(1)
	}

	if err := saveCLIConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Saved identity for %s\n", cfg.BaseURL)
}

func cmdStatus(args []string) {
	cfg, err := loadCLIConfig()
	if err != nil {
		fmt.Println("Status: No identity saved")
		fmt.Println("\nRun: gamerev use --user-id <uuid>  or  gamerev issue --url <server-url>")
		return
	}
	fmt.Printf("Server: %s\n", cfg.BaseURL)
	if cfg.UserID != "" {
		fmt.Printf("User:   %s\n", cfg.UserID)
	} else {
		fmt.Printf("User:   %s (anonymous)\n", cfg.UID)
	}
	fmt.Printf("Config: %s\n", cliConfigPath())
}

// ============================================================================
// CLIENT COMMANDS
// ============================================================================

func cmdCreate(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	fs.Parse(args)

	c := mustClient()
	created, err := c.CreateGame(context.Background())
	exitOnError(err)

	fmt.Printf("✓ Created game %s at rev %d\n", created.GameID, created.Rev)
	fmt.Printf("  Location: %s\n", created.Location)
}

func cmdGames(args []string) {
	fs := flag.NewFlagSet("games", flag.ExitOnError)
	fs.Parse(args)

	games, err := mustClient().ListGames(context.Background())
	exitOnError(err)

	fmt.Printf("\n🎲 Games (%d)\n\n", len(games))
	for _, g := range games {
		fmt.Printf("%s  rev %d | owner %s | updated %s\n",
			g.ID, g.Rev, g.OwnerID, g.UpdatedAt.Format(time.RFC3339))
	}
}

func cmdShow(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	game := fs.String("game", "", "Game ID (required)")
	fs.Parse(args)

	id := mustGameID(*game)
	g, err := mustClient().GetGame(context.Background(), id)
	exitOnError(err)

	fmt.Printf("\nGame %s\n", g.ID)
	fmt.Printf("  Owner:     %s\n", g.OwnerID)
	fmt.Printf("  Tip:       rev %d (%d revisions)\n", g.Rev, g.Revisions)
	fmt.Printf("  Created:   %s\n", g.CreatedAt.Format(time.RFC3339))
	fmt.Printf("  Updated:   %s\n", g.UpdatedAt.Format(time.RFC3339))
}

func cmdRevs(args []string) {
	fs := flag.NewFlagSet("revs", flag.ExitOnError)
	game := fs.String("game", "", "Game ID (required)")
	fs.Parse(args)

	id := mustGameID(*game)
	revs, err := mustClient().ListRevisions(context.Background(), id)
	exitOnError(err)

	for _, r := range revs {
		marker := ""
		if len(r.Shadow) > 0 {
			marker = " [shadow]"
		}
		fmt.Printf("#%d  %s%s\n    %s\n", r.Index, r.CreatedAt.Format(time.RFC3339), marker, r.State)
	}
}

func cmdRev(args []string) {
	fs := flag.NewFlagSet("rev", flag.ExitOnError)
	game := fs.String("game", "", "Game ID (required)")
	index := fs.Int("rev", -1, "Revision index (required)")
	fs.Parse(args)

	id := mustGameID(*game)
	if *index < 0 {
		fmt.Fprintln(os.Stderr, "Error: --rev is required")
		os.Exit(1)
	}
	r, err := mustClient().GetRevision(context.Background(), id, *index)
	exitOnError(err)
	printJSON(r)
}

func cmdAppend(args []string) {
	fs := flag.NewFlagSet("append", flag.ExitOnError)
	game := fs.String("game", "", "Game ID (required)")
	base := fs.Int("rev", -1, "Base revision the change applies to (required)")
	ops := fs.String("ops", "", "JSON array of operations")
	shadowDoc := fs.String("shadow", "", "JSON document stored as sealed shadow state")
	var sets setFlags
	fs.Var(&sets, "set", "path=value (value is JSON, or taken as a string); repeatable")
	fs.Parse(args)

	id := mustGameID(*game)
	if *base < 0 {
		fmt.Fprintln(os.Stderr, "Error: --rev is required")
		os.Exit(1)
	}

	t := revision.Transformation{Rev: base}
	if *ops != "" {
		if err := json.Unmarshal([]byte(*ops), &t.Ops); err != nil {
			fmt.Fprintf(os.Stderr, "Error: --ops: %v\n", err)
			os.Exit(1)
		}
	}
	t.Ops = append(t.Ops, sets...)
	if *shadowDoc != "" {
		t.Shadow = json.RawMessage(*shadowDoc)
	}
	if err := t.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	r, err := mustClient().AppendRevision(context.Background(), id, t)
	if errors.Is(err, client.ErrConflict) {
		fmt.Fprintf(os.Stderr, "Error: rev %d is no longer the tip; fetch the game and retry\n", *base)
		os.Exit(1)
	}
	exitOnError(err)

	fmt.Printf("✓ Appended rev %d to %s\n", r.Index, r.GameID)
	fmt.Printf("  Location: %s\n", r.Location)
}

func cmdRestore(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	game := fs.String("game", "", "Game ID (required)")
	expected := fs.Int("rev", -1, "Expected tip revision (optional)")
	fs.Parse(args)

	id := mustGameID(*game)
	var tip *int
	if *expected >= 0 {
		tip = expected
	}
	r, err := mustClient().RestoreGame(context.Background(), id, tip)
	exitOnError(err)
	if r == nil {
		fmt.Println("Nothing to restore: the tip carries no shadow state")
		return
	}
	fmt.Printf("✓ Restored shadow state as rev %d\n", r.Index)
}

// setFlags collects --set path=value pairs as set operations.
type setFlags []revision.Op

func (s *setFlags) String() string { return fmt.Sprint(len(*s)) }

func (s *setFlags) Set(v string) error {
	path, value, ok := strings.Cut(v, "=")
	if !ok || path == "" {
		return fmt.Errorf("expected path=value, got %q", v)
	}
	raw := json.RawMessage(value)
	if !json.Valid(raw) {
		quoted, _ := json.Marshal(value)
		raw = quoted
	}
	*s = append(*s, revision.Op{Op: revision.OpSet, Path: path, Value: raw})
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

func mustClient() *client.Client {
	cfg, err := loadCLIConfig()
	if err != nil {
		cfg = CLIConfig{BaseURL: envOr("GAMEREV_URL", "http://localhost:8080")}
	}
	c := client.New(cfg.BaseURL)
	switch {
	case cfg.UserID != "":
		u, err := uuid.Parse(cfg.UserID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: saved user id: %v\n", err)
			os.Exit(1)
		}
		c.UseUserID(u)
	case cfg.UID != "":
		token, err := uuid.Parse(cfg.Token)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: saved token: %v\n", err)
			os.Exit(1)
		}
		c.UseAnonymous(cfg.UID, token)
	default:
		fmt.Fprintln(os.Stderr, "Error: no identity saved")
		fmt.Fprintln(os.Stderr, "Run 'gamerev use' or 'gamerev issue --url <server-url>' first")
		os.Exit(1)
	}
	return c
}

func mustGameID(s string) uuid.UUID {
	if s == "" {
		fmt.Fprintln(os.Stderr, "Error: --game is required")
		os.Exit(1)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: --game: %v\n", err)
		os.Exit(1)
	}
	return id
}

func exitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Href != "" {
		fmt.Fprintf(os.Stderr, "  See: %s\n", apiErr.Href)
	}
	os.Exit(1)
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func cliConfigPath() string {
	if p := os.Getenv("GAMEREV_CLI_CONFIG"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gamerev", "config.json")
}

func loadCLIConfig() (CLIConfig, error) {
	data, err := os.ReadFile(cliConfigPath())
	if err != nil {
		return CLIConfig{}, errors.New("not initialized")
	}
	var cfg CLIConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return CLIConfig{}, err
	}
	if url := os.Getenv("GAMEREV_URL"); url != "" {
		cfg.BaseURL = url
	}
	return cfg, nil
}

func saveCLIConfig(cfg CLIConfig) error {
	path := cliConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, _ := json.MarshalIndent(cfg, "", "  ")
	return os.WriteFile(path, data, 0600)
}
