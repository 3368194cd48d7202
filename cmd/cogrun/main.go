// Command cogrun runs the cog code generator in rewrite-in-place mode
// against CMakeLists.txt and relays what it printed.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"time"

	"github.com/deixis/cogrun"
	"github.com/deixis/cogrun/internal/config"
	cogmcp "github.com/deixis/cogrun/internal/mcp"
	"github.com/deixis/cogrun/internal/regen"
	"github.com/deixis/cogrun/internal/report"
	"github.com/deixis/cogrun/internal/runner"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("cogrun: ")

	cmd := "run"
	args := os.Args[1:]
	if len(args) > 0 && (!strings.HasPrefix(args[0], "-") || args[0] == "-h" || args[0] == "--help") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "run":
		var status int
		status, err = runMain(args, os.Stdout)
		if err == nil && status != 0 {
			os.Exit(status)
		}
	case "show":
		err = showMain(args, os.Stdout)
	case "mcp":
		err = mcpMain(args)
	case "version":
		fmt.Println(cogrun.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "cogrun: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: cogrun [command] [flags]

Commands:
  run         Regenerate the target file with cog (default)
  show        Print a stored run by ID
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Use "cogrun <command> -h" for command-specific flags.`)
}

// --- run ---

// runMain regenerates the target and prints the report to w. It returns
// the status the process should exit with.
func runMain(args []string, w io.Writer) (int, error) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	strictFlag := fs.Bool("strict", false, "exit with the generator's status when it fails")
	jsonFlag := fs.Bool("json", false, "output the run as JSON")
	verboseFlag := fs.Bool("v", false, "log the command and run ID")
	timeoutFlag := fs.Duration("timeout", 0, "stop the generator after this long (e.g. 30s)")
	targetFlag := fs.String("target", "", "file to rewrite (default from config, CMakeLists.txt)")
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	loaded, err := loadConfig()
	if err != nil {
		return 0, err
	}
	cfg := loaded.Config

	if *verboseFlag {
		if loaded.Path != "" {
			log.Printf("config %s, root %s", loaded.Path, loaded.Root)
		} else {
			log.Printf("no %s found, root %s", config.FileName, loaded.Root)
		}
	}

	eng := newEngine(loaded, *timeoutFlag)
	eng.Target = *targetFlag

	outcome, err := eng.Regenerate(ctx)
	var failure *regen.CommandFailure
	if err != nil && !errors.As(err, &failure) {
		return 0, err
	}

	rr := report.FromOutcome(outcome)
	store := newDiskStore(cfg)
	if saveErr := store.Save(rr); saveErr != nil {
		log.Printf("saving run %s: %v", rr.ID, saveErr)
	}
	if *verboseFlag {
		log.Printf("run %s: %s (exit code %d, %s)", rr.ID, rr.Status, rr.ExitCode, rr.Duration.Round(time.Millisecond))
		if dir, err := store.Dir(); err == nil {
			log.Printf("history %s (keeping %d runs)", dir, cfg.HistorySize())
		}
	}

	if *jsonFlag {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rr); err != nil {
			return 0, err
		}
	} else if err := regen.Write(w, outcome); err != nil {
		return 0, err
	}

	return regen.ExitStatus(err, *strictFlag || cfg.PropagateExit), nil
}

// --- show ---

func showMain(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	jsonFlag := fs.Bool("json", false, "output the run as JSON")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("show: expected exactly one run ID")
	}

	loaded, err := loadConfig()
	if err != nil {
		return err
	}

	rr, err := newDiskStore(loaded.Config).Load(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("show: %w", err)
	}

	if *jsonFlag {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rr)
	}

	if _, err := fmt.Fprintln(w, rr.Summary()); err != nil {
		return err
	}
	return regen.Write(w, rr.Outcome())
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(cogmcp.Instructions)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return serve(ctx, *httpAddr)
}

func serve(ctx context.Context, httpAddr string) error {
	loaded, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := loaded.Config

	store := report.NewLRUStore(cfg.HistorySize(), newDiskStore(cfg))

	r := &runner.Runner{
		Workspace: loaded.Root,
		Timeout:   cfg.Timeout(),
		MaxOutput: cfg.MaxOutputBytes(),
	}

	server := cogmcp.NewServer(cfg, r, store, loaded.Root)

	if httpAddr != "" {
		return serveHTTP(ctx, server, httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- shared ---

func loadConfig() (*config.LoadResult, error) {
	workspace, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining workspace: %w", err)
	}
	loaded, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return loaded, nil
}

func newEngine(loaded *config.LoadResult, timeoutOverride time.Duration) *regen.Engine {
	cfg := loaded.Config

	timeout := cfg.Timeout()
	if timeoutOverride > 0 {
		timeout = timeoutOverride
	}

	r := &runner.Runner{
		Workspace: loaded.Root,
		Timeout:   timeout,
		MaxOutput: cfg.MaxOutputBytes(),
	}

	return &regen.Engine{
		Config:   cfg,
		Runner:   r,
		Root:     loaded.Root,
		LookPath: exec.LookPath,
	}
}

func newDiskStore(cfg *config.Config) *report.DiskStore {
	return report.NewDiskStore(cfg.HistoryDir(), cfg.HistorySize())
}
