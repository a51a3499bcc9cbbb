// ABOUTME: Entry point for the greenroom CLI: one-shot previews, server mode, TUI dashboard.
// ABOUTME: Wires together the supervisor, proxy manager, history log, web API, and signal handling.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/2389-research/greenroom/builder"
	"github.com/2389-research/greenroom/config"
	"github.com/2389-research/greenroom/events"
	"github.com/2389-research/greenroom/history"
	"github.com/2389-research/greenroom/proxy"
	"github.com/2389-research/greenroom/supervisor"
	"github.com/2389-research/greenroom/tui"
	"github.com/2389-research/greenroom/web"
	"github.com/2389-research/greenroom/workspace"
)

var version = "dev"

type cliConfig struct {
	configPath  string
	root        string
	listen      string
	historyPath string
	serverMode  bool
	tuiMode     bool
	useProxy    bool
	showVersion bool
	previewDir  string
}

func main() {
	loadDotEnv(".env")

	cfg := parseFlags()

	if cfg.showVersion {
		fmt.Printf("greenroom %s\n", version)
		os.Exit(0)
	}

	os.Exit(run(cfg))
}

// parseFlags parses command-line flags and returns a populated cliConfig.
func parseFlags() cliConfig {
	var cfg cliConfig

	fs := flag.NewFlagSet("greenroom", flag.ContinueOnError)
	fs.StringVar(&cfg.configPath, "config", "", "Path to YAML config file")
	fs.StringVar(&cfg.root, "root", "", "Temp root for materialized projects")
	fs.StringVar(&cfg.listen, "listen", "", "HTTP control API address (server mode)")
	fs.StringVar(&cfg.historyPath, "history", "", "SQLite attempt-log path ('' = config default, 'off' = disabled)")
	fs.BoolVar(&cfg.serverMode, "server", false, "Start HTTP control API mode")
	fs.BoolVar(&cfg.tuiMode, "tui", false, "Run with the terminal dashboard")
	fs.BoolVar(&cfg.useProxy, "proxy", false, "Front the preview with a reverse proxy")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	fs.Usage = func() {
		printHelp(os.Stderr, version)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if fs.NArg() > 0 {
		cfg.previewDir = fs.Arg(0)
	}

	return cfg
}

// run dispatches to the appropriate mode based on the config.
// Returns an exit code: 0 for success, 1 for failure.
func run(cli cliConfig) int {
	cfg, err := config.Load(cli.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	applyOverrides(&cfg, cli)

	if cli.serverMode {
		return runServer(cfg, cli.tuiMode)
	}

	if cli.previewDir == "" {
		printHelp(os.Stderr, version)
		return 0
	}

	return runPreview(cfg, cli)
}

// applyOverrides layers environment variables and explicit flags over the
// file config. Flags win over environment, environment over file.
func applyOverrides(cfg *config.Config, cli cliConfig) {
	if v := os.Getenv("GREENROOM_ROOT"); v != "" {
		cfg.Root = v
	}
	if v := os.Getenv("GREENROOM_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("GREENROOM_HISTORY"); v != "" {
		cfg.HistoryPath = v
	}
	if cli.root != "" {
		cfg.Root = cli.root
	}
	if cli.listen != "" {
		cfg.Listen = cli.listen
	}
	if cli.historyPath != "" {
		cfg.HistoryPath = cli.historyPath
	}
	if cfg.HistoryPath == "off" {
		cfg.HistoryPath = ""
	}
}

// stack is the fully wired orchestrator.
type stack struct {
	sup     *supervisor.Supervisor
	proxies *proxy.Manager
	hist    *history.Store
	broker  *web.Broker
	fanout  *eventFanout
}

// eventFanout dispatches one lifecycle event to every attached handler.
type eventFanout struct {
	mu       sync.Mutex
	handlers []events.Handler
}

func (f *eventFanout) add(h events.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, h)
}

func (f *eventFanout) handle(e events.Event) {
	f.mu.Lock()
	handlers := make([]events.Handler, len(f.handlers))
	copy(handlers, f.handlers)
	f.mu.Unlock()
	for _, h := range handlers {
		h(e)
	}
}

// buildStack wires the supervisor, proxy manager, history log, and event
// plumbing from cfg.
func buildStack(cfg config.Config) (*stack, error) {
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create root %s: %w", cfg.Root, err)
	}

	fanout := &eventFanout{}
	broker := web.NewBroker()
	fanout.add(broker.Publish)

	var hist *history.Store
	var recorder supervisor.Recorder
	if cfg.HistoryPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.HistoryPath), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
		store, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return nil, err
		}
		hist = store
		recorder = store
	}

	sup := supervisor.New(supervisor.Config{
		Root: cfg.Root,
		Runner: &builder.Runner{
			InstallTimeout: cfg.InstallTimeout(),
			BuildTimeout:   cfg.BuildTimeout(),
		},
		Recorder:       recorder,
		Events:         fanout.handle,
		StopGrace:      cfg.StopGrace(),
		ErrorTailBytes: cfg.ErrorTailBytes,
	})
	proxies := proxy.NewManager(fanout.handle)

	return &stack{sup: sup, proxies: proxies, hist: hist, broker: broker, fanout: fanout}, nil
}

// shutdown tears the whole stack down: every app, every proxy, the log.
func (s *stack) shutdown() {
	s.sup.StopAll()
	s.proxies.Cleanup()
	if s.hist != nil {
		s.hist.Close()
	}
}

// runServer starts the HTTP control API, optionally with the dashboard
// attached, and blocks until SIGINT/SIGTERM.
func runServer(cfg config.Config, withTUI bool) int {
	st, err := buildStack(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer st.shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var histSvc web.HistoryService
	if st.hist != nil {
		histSvc = st.hist
	}
	srv := &web.Server{Apps: st.sup, Proxies: st.proxies, History: histSvc, Broker: st.broker}

	if !withTUI {
		if err := srv.ListenAndServe(ctx, cfg.Listen); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		log.Printf("greenroom shutting down")
		return 0
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe(ctx, cfg.Listen)
	}()

	if err := runDashboard(ctx, st); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	cancel()
	if err := <-serverErr; err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// runPreview materializes a directory of generated files, starts a
// preview, prints the front door URL, and tears down on SIGINT.
func runPreview(cfg config.Config, cli cliConfig) int {
	files, err := loadGeneratedDir(cli.previewDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "error: no files found under %s\n", cli.previewDir)
		return 1
	}

	st, err := buildStack(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer st.shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	appID := "preview-" + uuid.NewString()[:8]
	info, err := st.sup.Start(ctx, appID, files)
	if err != nil {
		var berr *builder.BuildError
		if errors.As(err, &berr) {
			fmt.Fprintf(os.Stderr, "build failed:\n%s\n", berr.Output)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		st.sup.Cleanup(appID)
		return 1
	}
	defer st.sup.Cleanup(appID)

	frontDoor := info.FrontDoorURL
	if cli.useProxy {
		pinfo, perr := st.proxies.StartProxy(info.FrontDoorURL)
		if perr != nil {
			log.Printf("greenroom proxy start failed, using direct url: %v", perr)
		} else {
			frontDoor = pinfo.ProxyURL
		}
	}

	fmt.Printf("preview %s running at %s (ctrl-c to stop)\n", appID, frontDoor)

	if cli.tuiMode {
		if err := runDashboard(ctx, st); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	<-ctx.Done()
	log.Printf("greenroom shutting down")
	return 0
}

// runDashboard attaches the Bubble Tea dashboard to the stack's event
// stream and blocks until the user quits or ctx is cancelled.
func runDashboard(ctx context.Context, st *stack) error {
	model := tui.NewDashboardModel(st.sup)
	program := tea.NewProgram(model, tea.WithAltScreen())

	bridge := tui.NewEventBridge(program.Send)
	st.fanout.add(bridge.HandleEvent)

	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	_, err := program.Run()
	return err
}

// loadGeneratedDir reads every regular file under dir into GeneratedFile
// records with dir-relative paths. Hidden files and node_modules are
// skipped.
func loadGeneratedDir(dir string) ([]workspace.GeneratedFile, error) {
	var files []workspace.GeneratedFile
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if name == "node_modules" || (strings.HasPrefix(name, ".") && path != dir) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, workspace.GeneratedFile{
			Path:     filepath.ToSlash(rel),
			Content:  string(content),
			Language: languageForExt(filepath.Ext(name)),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	return files, nil
}

func languageForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".jsx":
		return "jsx"
	case ".tsx":
		return "tsx"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".ts":
		return "typescript"
	case ".html", ".htm":
		return "html"
	case ".css":
		return "css"
	case ".json":
		return "json"
	default:
		return ""
	}
}
