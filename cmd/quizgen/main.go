package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quiz-labs/quizgen/internal/eval"
	"github.com/quiz-labs/quizgen/internal/handler"
	appI18n "github.com/quiz-labs/quizgen/internal/i18n"
	"github.com/quiz-labs/quizgen/internal/llm"
	"github.com/quiz-labs/quizgen/internal/rag"
	"github.com/quiz-labs/quizgen/internal/session"
	"github.com/quiz-labs/quizgen/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "quizgen",
		Short: "Adaptive quiz generator powered by LLMs",
	}

	serve := serveCmd()
	root.AddCommand(serve, reportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `quizgen --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP quiz server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "quizgen.db", "SQLite database path")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("embed-model", "nomic-embed-text", "Embedding model name for the knowledge index")
	f.StringP("default-lang", "l", "en", "Default message language before a session picks one")
	f.String("knowledge", "", "Path to syllabus knowledge text (empty = built-in)")
	f.Int("retrieval-k", 3, "Context snippets retrieved per auto-detected quiz")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export a student's stored performance record as JSON",
		RunE:  runReport,
	}
	f := cmd.Flags()
	f.String("db", "quizgen.db", "SQLite database path")
	f.String("student", "", "Student identifier (empty = all students)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("QUIZGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("quizgen")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/quizgen")
	v.AddConfigPath("/etc/quizgen")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	// Open database.
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Initialize i18n.
	lang := v.GetString("default-lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	// Create LLM client.
	llmClient := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
	)
	if err := llmClient.Ping(context.Background()); err != nil {
		return fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))

	// Build the knowledge index for auto-detected quizzes. A failure here is
	// not fatal: the generator works without retrieved context.
	retriever := buildIndex(v)

	pipeline := eval.New(llmClient, llmClient, db)
	manager := session.NewManager(llmClient, retriever, pipeline, db, v.GetInt("retrieval-k"))
	h := handler.New(manager, v.GetBool("secure-cookies"))

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"default_lang", lang,
		"retrieval_k", v.GetInt("retrieval-k"),
	)
	return http.ListenAndServe(addr, r)
}

// buildIndex loads the syllabus knowledge text and embeds it. Returns nil
// when the index cannot be built; auto-detected quizzes then generate
// without retrieved context.
func buildIndex(v *viper.Viper) session.Retriever {
	text := rag.DefaultKnowledge
	if path := v.GetString("knowledge"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("reading knowledge file failed, using built-in text", "path", path, "error", err)
		} else {
			text = string(data)
		}
	}

	embedder := rag.NewOpenAIEmbedder(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("embed-model"),
	)
	index, err := rag.NewIndex(context.Background(), embedder, text)
	if err != nil {
		slog.Warn("knowledge index unavailable, auto-detect quizzes run without context", "error", err)
		return nil
	}
	slog.Info("knowledge index ready", "embed_model", v.GetString("embed-model"))
	return index
}

func runReport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ids := []string{v.GetString("student")}
	if ids[0] == "" {
		ids, err = db.ListStudentIDs()
		if err != nil {
			return fmt.Errorf("list students: %w", err)
		}
	}

	records := make([]any, 0, len(ids))
	for _, id := range ids {
		rec, err := db.GetRecord(id)
		if err != nil {
			return fmt.Errorf("read record for %s: %w", id, err)
		}
		if rec == nil {
			return fmt.Errorf("no record found for student %s", id)
		}
		records = append(records, rec)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}
