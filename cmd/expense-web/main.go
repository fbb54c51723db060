package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"expense-web/internal/expense"
	"expense-web/internal/extraction"
	"expense-web/internal/session"
	"expense-web/internal/upstream"
	"expense-web/internal/web"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A local .env is a convenience for development; absence is fine
	godotenv.Load()

	fs := ff.NewFlagSet("expense-web")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		sessionDB     = fs.StringLong("session-db", "expense-web.db", "Session database file path")
		sessionTTL    = fs.DurationLong("session-ttl", 30*24*time.Hour, "Session lifetime")
		apiBaseURL    = fs.StringLong("api-base-url", "", "Remote expense API base URL (required)")
		apiCode       = fs.StringLong("api-code", "", "Remote expense API access code (required)")
		extractorType = fs.StringLong("extractor", "openai", "Extractor type: 'openai' or 'gemini'")
		openaiBaseURL = fs.StringLong("openai-base-url", "", "OpenAI-compatible API base URL")
		openaiKey     = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openaiModel   = fs.StringLong("openai-model", "gpt-4o-mini", "OpenAI model name")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("EXPENSE_WEB"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *apiBaseURL == "" || *apiCode == "" {
		slog.Error("Remote API configuration is required. Set --api-base-url and --api-code")
		os.Exit(1)
	}

	// Initialize the remote API client
	api, err := upstream.New(*apiBaseURL, *apiCode)
	if err != nil {
		slog.Error("Failed to initialize API client", "error", err)
		os.Exit(1)
	}

	// Initialize the session store
	slog.Info("Initializing session store...")
	sessions, err := session.NewBoltStore(*sessionDB, *sessionTTL)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer sessions.Close()

	// Initialize the extractor based on type
	var extractor extraction.Extractor
	switch *extractorType {
	case "openai":
		apiKey := *openaiKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("OpenAI API key is required. Set --openai-key flag or OPENAI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing OpenAI extractor...", "model", *openaiModel)
		extractor, err = extraction.NewOpenAI(*openaiBaseURL, apiKey, *openaiModel)
		if err != nil {
			slog.Error("Failed to initialize OpenAI", "error", err)
			os.Exit(1)
		}
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini extractor...", "model", *geminiModel)
		extractor, err = extraction.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid extractor type", "type", *extractorType, "valid", "openai or gemini")
		os.Exit(1)
	}
	defer extractor.Close()

	// Initialize the web server
	server := web.NewServer(web.Config{
		Upstream:   api,
		Sessions:   sessions,
		Scans:      expense.NewService(extractor),
		SessionTTL: *sessionTTL,
	})

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
