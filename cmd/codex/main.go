package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/codex/internal"
	pkgconfig "github.com/starford/codex/pkg/config"
)

func loadConfig(cmd *cli.Command) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOrDefault(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return []internal.Option{
		internal.WithConfig(cfg),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func ingestDir(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		return fmt.Errorf("usage: codex ingest <dir>")
	}
	opts, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.IngestDir(ctx, dir, opts...)
}

func search(ctx context.Context, cmd *cli.Command) error {
	query := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("usage: codex search <query>")
	}
	opts, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Search(ctx, query, int(cmd.Int("k")), opts...)
}

func ask(ctx context.Context, cmd *cli.Command) error {
	question := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("usage: codex ask <question>")
	}
	opts, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Ask(ctx, question, opts...)
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, opts...)
}

func main() {
	cmd := &cli.Command{
		Name:  "codex",
		Usage: "Document corpus with content-hash dedup, trigram retrieval, and citation-indexed grounding",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, SSE stream, and directory watcher",
				Action: serve,
			},
			{
				Name:      "ingest",
				Usage:     "Ingest every allow-listed file under a directory",
				ArgsUsage: "<dir>",
				Action:    ingestDir,
			},
			{
				Name:      "search",
				Usage:     "Print the grounding block for a query",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "k", Usage: "Maximum number of chunks (0 uses retrieval.k)"},
				},
				Action: search,
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the corpus",
				ArgsUsage: "<question>",
				Action:    ask,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
