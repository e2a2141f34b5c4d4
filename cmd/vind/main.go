// Command vind binds keyboard keys to elements of web pages.
//
// Usage:
//
//	vind [flags] register <url>   # pick an element and a key on a live page
//	vind [flags] run <url>        # open a page and fire bindings on keydown
//	vind [flags] list [domain]    # print bindings as JSON
//	vind [flags] export [file]    # write the versioned payload (stdout by default)
//	vind [flags] import <file>    # apply a payload, all or nothing
//	vind [flags] serve            # admin HTTP API (and MCP over stdio with -mcp)
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/vind/binding"
	"github.com/hazyhaar/vind/browser"
	"github.com/hazyhaar/vind/keybind"
	"github.com/hazyhaar/vind/registration"
	"github.com/hazyhaar/vind/trigger"
)

func main() {
	configPath := flag.String("config", "", "path to vind.yaml config file")
	dbPath := flag.String("db", "", "path to SQLite database (overrides config)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	serveMCP := flag.Bool("mcp", false, "serve: also serve MCP tools over stdio")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: vind [flags] register <url> | run <url> | list [domain] | export [file] | import <file> | serve")
		flag.PrintDefaults()
	}
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *dbPath, *serveMCP, flag.Args()); err != nil {
		logger.Error("vind: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, dbPath string, serveMCP bool, args []string) error {
	cfg, err := resolveConfig(configPath, dbPath)
	if err != nil {
		return err
	}

	k, err := keybind.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer k.Close()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register":
		if len(rest) != 1 {
			return errors.New("register: expected a page URL")
		}
		return register(ctx, logger, k, rest[0])
	case "run":
		if len(rest) != 1 {
			return errors.New("run: expected a page URL")
		}
		return runPage(ctx, logger, k, rest[0])
	case "list":
		var domain string
		if len(rest) > 0 {
			domain = rest[0]
		}
		return list(ctx, k, domain)
	case "export":
		data, err := k.Export(ctx)
		if err != nil {
			return err
		}
		if len(rest) > 0 {
			return os.WriteFile(rest[0], data, 0o644)
		}
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	case "import":
		if len(rest) != 1 {
			return errors.New("import: expected a payload file")
		}
		data, err := os.ReadFile(rest[0])
		if err != nil {
			return err
		}
		res, err := k.Import(ctx, data)
		if err != nil {
			return err
		}
		return printJSON(res)
	case "serve":
		return serve(ctx, logger, k, serveMCP)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func resolveConfig(configPath, dbPath string) (*keybind.Config, error) {
	cfg := keybind.NewConfig()
	if configPath != "" {
		loaded, err := keybind.LoadConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

// openPage starts Chrome and opens pageURL.
func openPage(ctx context.Context, logger *slog.Logger, cfg browser.Config, pageURL string) (*browser.Manager, *browser.Tab, error) {
	mgr := browser.NewManager(cfg, logger)
	if _, err := mgr.Start(ctx); err != nil {
		return nil, nil, err
	}
	tab, err := browser.OpenTab(ctx, mgr, pageURL)
	if err != nil {
		mgr.Close()
		return nil, nil, err
	}
	return mgr, tab, nil
}

func register(ctx context.Context, logger *slog.Logger, k *keybind.Keeper, pageURL string) error {
	mgr, tab, err := openPage(ctx, logger, k.Config().Browser, pageURL)
	if err != nil {
		return err
	}
	defer mgr.Close()
	defer tab.Close()

	events, err := tab.Events(ctx)
	if err != nil {
		return err
	}
	if err := tab.SetCapture(ctx, true); err != nil {
		return err
	}
	defer tab.SetCapture(context.WithoutCancel(ctx), false)

	domain, path, err := binding.SplitURL(tab.URL())
	if err != nil {
		return err
	}

	ctrl := registration.New(events, tab, k, k.Config().Registration, logger)
	ctrl.OnState(func(s registration.State) {
		fmt.Fprintf(os.Stderr, "vind: %s\n", s)
	})
	b, err := ctrl.Register(ctx, domain, path)
	return reportRegistration(os.Stdout, logger, b, err)
}

// reportRegistration prints the saved binding. A registration the user
// aborted is not a failure.
func reportRegistration(w io.Writer, logger *slog.Logger, b *binding.Binding, err error) error {
	if registration.IsAborted(err) {
		logger.Info("vind: registration aborted")
		return nil
	}
	if err != nil {
		return err
	}
	return writeJSON(w, b)
}

func runPage(ctx context.Context, logger *slog.Logger, k *keybind.Keeper, pageURL string) error {
	mgr, tab, err := openPage(ctx, logger, k.Config().Browser, pageURL)
	if err != nil {
		return err
	}
	defer mgr.Close()
	defer tab.Close()

	events, err := tab.Events(ctx)
	if err != nil {
		return err
	}
	d := trigger.New(k, tab, nil, logger)
	err = d.Run(ctx, events)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func list(ctx context.Context, k *keybind.Keeper, domain string) error {
	var (
		bs  []*binding.Binding
		err error
	)
	if domain != "" {
		bs, err = k.BindingsForDomain(ctx, domain)
	} else {
		bs, err = k.ListBindings(ctx)
	}
	if err != nil {
		return err
	}
	return printJSON(binding.ByScope(bs))
}

func serve(ctx context.Context, logger *slog.Logger, k *keybind.Keeper, serveMCP bool) error {
	r := chi.NewRouter()
	for _, mw := range k.Middleware() {
		r.Use(mw)
	}
	k.RegisterHTTP(r)

	srv := &http.Server{
		Addr:              k.Config().HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 2)
	go func() {
		logger.Info("vind: http listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	if serveMCP {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "vind", Version: k.Config().Version}, nil)
		k.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				errc <- fmt.Errorf("mcp: %w", err)
			}
		}()
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
	}
	logger.Info("vind: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if sErr := srv.Shutdown(shutdownCtx); sErr != nil {
		logger.Error("vind: shutdown", "error", sErr)
	}
	return err
}

func printJSON(v any) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
