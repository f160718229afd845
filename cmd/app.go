package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"codeindex/internal/config"
	"codeindex/internal/embedder"
	"codeindex/internal/events"
	"codeindex/internal/extract"
	"codeindex/internal/extract/languages"
	"codeindex/internal/index"
	"codeindex/internal/llm"
	"codeindex/internal/search"
	"codeindex/internal/store"
	"codeindex/internal/walker"
)

// app is everything one command invocation needs, wired from config.
type app struct {
	cfg     config.Config
	paths   config.Paths
	logger  *slog.Logger
	store   *store.Store
	indexer *index.Indexer
	search  *search.Service
	embed   *embedder.OllamaEmbedder
	scorer  *llm.OllamaChat
	bus     *events.Bus
	logFile *os.File
}

// openApp resolves the project, loads its config with flag overrides and
// opens the store. Logs go to stderr.
func openApp(cmd *cobra.Command) (*app, error) {
	return openWith(cmd, false)
}

// openWith is openApp with the option of logging to <data dir>/codeindex.log,
// for screens that own the terminal.
func openWith(cmd *cobra.Command, logToFile bool) (*app, error) {
	root := flagRoot
	if root == "" {
		root = "."
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}
	paths, err := config.ResolvePaths(root, flagDataDir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, &cfg)

	var logOut io.Writer = os.Stderr
	var logFile *os.File
	if logToFile {
		logFile, err = os.OpenFile(filepath.Join(paths.DataDir, "codeindex.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logOut = logFile
	}
	logger, err := config.NewLogger(cfg.LogLevel, logOut)
	if err != nil {
		closeQuietly(logFile)
		return nil, err
	}
	st, err := store.Open(paths.DBPath, logger)
	if err != nil {
		closeQuietly(logFile)
		return nil, fmt.Errorf("open index: %w", err)
	}
	ix, err := index.NewIndexer(st, extract.New(languages.Default()), paths.Root, logger)
	if err != nil {
		st.Close()
		closeQuietly(logFile)
		return nil, err
	}
	emb := embedder.NewOllamaEmbedder(cfg.Ollama.URL, cfg.Ollama.EmbedModel)
	svc, err := search.New(st, ix.Root(), emb, logger)
	if err != nil {
		st.Close()
		closeQuietly(logFile)
		return nil, err
	}
	logger.Debug("opened index", "root", paths.Root, "db", paths.DBPath)
	return &app{
		cfg:     cfg,
		paths:   paths,
		logger:  logger,
		store:   st,
		indexer: ix,
		search:  svc,
		embed:   emb,
		scorer:  llm.NewOllamaChat(cfg.Ollama.URL, cfg.Ollama.ScoreModel),
		bus:     events.NewBus(),
		logFile: logFile,
	}, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("ollama") {
		cfg.Ollama.URL = flagOllama
	}
	if flags.Changed("score-model") {
		cfg.Ollama.ScoreModel = flagScoreModel
	}
	if flags.Changed("embed-model") {
		cfg.Ollama.EmbedModel = flagEmbedModel
	}
}

func (a *app) extensions() map[string]bool {
	if set := a.cfg.ExtensionSet(); set != nil {
		return set
	}
	return walker.DefaultExtensions
}

func (a *app) coordinator(sink events.Sink) *index.Coordinator {
	return index.NewCoordinator(a.indexer, a.store, sink, a.logger, index.CoordinatorOptions{
		Debounce:      a.cfg.Debounce.Std(),
		BulkThreshold: a.cfg.BulkThreshold,
		BulkWindow:    a.cfg.BulkWindow.Std(),
		ExcludeFile:   a.paths.ExcludeFile,
		PrivateDir:    a.paths.PrivateDir,
		Extensions:    a.extensions(),
		MaxFileSize:   a.cfg.MaxFileSize,
	})
}

func (a *app) enricher(sink events.Sink) *index.Enricher {
	var exts map[string]bool
	if set := a.cfg.ExtensionSet(); set != nil {
		exts = make(map[string]bool)
		for e := range set {
			if walker.EnrichableExtensions[e] {
				exts[e] = true
			}
		}
	}
	return index.NewEnricher(a.indexer, a.store, a.scorer, sink, a.logger, index.EnricherOptions{
		Timeout:     a.cfg.Ollama.ScoreTimeout.Std(),
		Extensions:  exts,
		ExcludeFile: a.paths.ExcludeFile,
		PrivateDir:  a.paths.PrivateDir,
		MaxFileSize: a.cfg.MaxFileSize,
	})
}

// reindex runs one full reindex and waits for it, or for ctx.
func (a *app) reindex(ctx context.Context, c *index.Coordinator) error {
	done, err := c.ReindexProject(a.paths.Root)
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *app) Close() {
	a.bus.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close store", "err", err)
	}
	closeQuietly(a.logFile)
}

func closeQuietly(f *os.File) {
	if f != nil {
		f.Close()
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
