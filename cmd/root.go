// Package cmd wires the CLI surface: one operation per invocation, flat
// error propagation to the process boundary.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"ragctl/pkg/chunk"
	"ragctl/pkg/config"
	"ragctl/rag"
	"ragctl/rag/engine"
	"ragctl/rag/interfaces"
)

const longDesc = `ragctl manages documents in a vector database for retrieval-augmented
generation: it ingests files into a searchable embedding index, keeps the
index consistent with source files via update/delete/load, and answers
queries by similarity search or a conversational RAG chain.

Examples:
  ragctl --config rag.yaml --operation insert --file-path docs/a.pdf
  ragctl --config rag.yaml --operation query --query "how do I deploy?" --use-rag
  ragctl --config rag.yaml --operation drop`

func NewRootCmd() *cobra.Command {
	var (
		configPath string
		operation  string
		filePath   string
		query      string
		useRAG     bool
	)

	cmd := &cobra.Command{
		Use:           "ragctl",
		Short:         "Vector database document manager",
		Long:          longDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, operation, filePath, query, useRAG)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the YAML config file")
	cmd.Flags().StringVar(&operation, "operation", "", "operation to perform: insert|update|delete|query|drop|load|list")
	cmd.Flags().StringVar(&filePath, "file-path", "", "file or directory to process")
	cmd.Flags().StringVar(&query, "query", "", "query text for search operations")
	cmd.Flags().BoolVar(&useRAG, "use-rag", false, "answer the query with the conversational RAG chain instead of plain similarity search")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("operation")

	return cmd
}

// Execute runs the root command with a background context.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

func run(ctx context.Context, configPath, operation, filePath, query string, useRAG bool) error {
	switch operation {
	case "insert", "update", "delete", "load":
		if filePath == "" {
			return fmt.Errorf("--file-path is required for %s operation", operation)
		}
	case "query":
		if query == "" {
			return fmt.Errorf("--query is required for query operation")
		}
	case "drop", "list":
	default:
		return fmt.Errorf("unknown operation: %s", operation)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	client := newOpenAIClient()
	embedder := rag.NewOpenAIEmbedder(client, cfg.EmbeddingModel)
	loader := chunk.NewLoader(cfg.FileType, chunk.NewSplitter(cfg.ChunkSize, *cfg.ChunkOverlap))
	manager := rag.NewManager(store, embedder, loader)

	if err := manager.EnsureCollection(ctx); err != nil {
		return err
	}

	switch operation {
	case "insert":
		n, err := manager.Insert(ctx, filePath)
		if err != nil {
			return err
		}
		fmt.Printf("Successfully inserted %d document chunks\n", n)

	case "update":
		n, err := manager.Update(ctx, filePath)
		if err != nil {
			return err
		}
		fmt.Printf("Successfully updated %s (%d chunks)\n", filePath, n)

	case "delete":
		n, err := manager.Delete(ctx, filePath)
		if err != nil {
			return err
		}
		fmt.Printf("Successfully deleted %d documents from %s\n", n, filePath)

	case "query":
		qe := rag.NewQueryEngine(store, embedder, rag.NewOpenAIChat(client, cfg.ChatModel))
		if useRAG {
			session := rag.NewSession()
			answer, err := qe.ConversationalQuery(ctx, session, query)
			if err != nil {
				return err
			}
			fmt.Println("Query result:")
			fmt.Println(answer)
		} else {
			matches, err := qe.SimilaritySearch(ctx, query)
			if err != nil {
				return err
			}
			fmt.Println("Query result:")
			for _, m := range matches {
				fmt.Printf("  [%.4f] %s (offset %d)\n      %s\n", m.Score, m.Source, m.StartIndex, m.Text)
			}
		}

	case "drop":
		if err := manager.Drop(ctx); err != nil {
			return err
		}

	case "load":
		n, err := manager.Load(ctx, filePath)
		if err != nil {
			return err
		}
		fmt.Printf("Successfully loaded %d document chunks into new collection\n", n)

	case "list":
		names, err := manager.Collections(ctx)
		if err != nil {
			return err
		}
		fmt.Println("Available collections:")
		for _, name := range names {
			fmt.Printf("  - %s\n", name)
		}
	}

	// The original tool prints collection statistics after every operation
	// except drop.
	if operation != "drop" {
		count, err := manager.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Collection %q statistics:\n  Row count: %d\n", cfg.Collection, count)
	}

	return nil
}

func buildStore(ctx context.Context, cfg *config.Config) (interfaces.Store, error) {
	switch cfg.Store {
	case config.StoreChromem:
		return engine.NewChromemStore(cfg.Collection, cfg.StorePath)
	default:
		return engine.NewPostgresStore(ctx, cfg.Database.Host, cfg.Database.Port,
			cfg.Database.User, cfg.Database.Password, cfg.Database.Name, cfg.Collection)
	}
}

func newOpenAIClient() *openai.Client {
	c := openai.DefaultConfig(os.Getenv("OPENAI_API_KEY"))
	if base := os.Getenv("OPENAI_API_BASE_URL"); base != "" {
		c.BaseURL = base
	}
	return openai.NewClientWithConfig(c)
}
