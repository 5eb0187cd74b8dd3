package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kalambet/intelapi/internal/api"
	"github.com/kalambet/intelapi/internal/config"
	"github.com/kalambet/intelapi/internal/engine"
	"github.com/kalambet/intelapi/internal/guardrail"
	"github.com/kalambet/intelapi/internal/ollama"
	"github.com/kalambet/intelapi/internal/session"
	"github.com/kalambet/intelapi/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the intelapi server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpStdio, _ := cmd.Flags().GetBool("mcp-stdio")
		return runServer(cmd.Context(), mcpStdio)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running intelapi server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show intelapi system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	startCmd.Flags().Bool("mcp-stdio", false, "also serve MCP tools over stdin/stdout")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "intelapi.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildCatalog wires the two served models. Both run on Ollama behind a
// guardrail; the permissive entry only screens input.
func buildCatalog(cfg config.Config, client *ollama.Client) (*session.Catalog, []*engine.OllamaEngine, error) {
	matcher := guardrail.NewMatcher(cfg.Guardrails.Phrases, cfg.Guardrails.Threshold)

	permissiveModel := cfg.Ollama.PermissiveModel
	if permissiveModel == "" {
		permissiveModel = cfg.Ollama.Model
	}
	base := engine.NewOllamaEngine(client, cfg.Ollama.Model)
	permissive := engine.NewOllamaEngine(client, permissiveModel)

	catalog, err := session.NewCatalog(
		session.Model{Name: session.ModelBase, Engine: guardrail.Wrap(base, matcher, guardrail.Default)},
		session.Model{Name: session.ModelPermissive, Engine: guardrail.Wrap(permissive, matcher, guardrail.Permissive)},
	)
	if err != nil {
		return nil, nil, err
	}
	return catalog, []*engine.OllamaEngine{base, permissive}, nil
}

func runServer(parent context.Context, mcpStdio bool) error {
	// With MCP on stdio, stdout belongs to the protocol.
	out := os.Stdout
	if mcpStdio {
		out = os.Stderr
	}
	fmt.Fprintf(out, "intelapi version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)})))

	// Check if a server is already running via the health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(serverURL(cfg) + "/health"); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("intelapi is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("intelapi is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := ollama.New(cfg.Ollama.BaseURL)
	catalog, backends, err := buildCatalog(cfg, client)
	if err != nil {
		return fmt.Errorf("building model catalog: %w", err)
	}
	models := make([]string, len(backends))
	for i, b := range backends {
		models[i] = b.Model()
	}
	if err := engine.EnsureReady(ctx, backends[0], models, out); err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()
	if versions, err := store.AppliedMigrations(); err == nil {
		slog.Debug("storage ready", "data_dir", cfg.Storage.DataDir, "migrations", versions)
	}

	handler := api.NewOpenAIHandler(api.Deps{
		Catalog: catalog,
		Log:     store,
		Metrics: cfg.Metrics.Enabled,
	})

	addr := cfg.Server.Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	if mcpStdio {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Catalog: catalog, Log: store, Version: version})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(out, "intelapi listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(out, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("intelapi is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop intelapi (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to intelapi (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	base := serverURL(cfg)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(base + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on %s", cfg.Server.Addr())
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if ollama.New(cfg.Ollama.BaseURL).IsRunning(ctx) {
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	} else {
		printStatus("Ollama", "not running")
	}

	printStatus("Base model", "%s", cfg.Ollama.Model)
	permissive := cfg.Ollama.PermissiveModel
	if permissive == "" {
		permissive = cfg.Ollama.Model
	}
	printStatus("Permissive model", "%s", permissive)

	if running {
		c := &apiClient{baseURL: base, httpClient: client}
		resp, err := c.get(ctx, "/api/v1/generations?limit=100")
		if err == nil {
			var gens []storage.Generation
			if decodeJSON(resp, &gens) == nil {
				printStatus("Generations", "%s", countLabel(len(gens), 100))
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
