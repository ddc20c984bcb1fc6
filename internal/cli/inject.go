package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/triage/internal/core/config"
	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/queue"
	redisclient "github.com/vietddude/triage/internal/infra/redis"
)

var (
	injectType    string
	injectCodes   []string
	injectMatch   float64
	injectRetries int
	injectAgent   string
)

var injectCmd = &cobra.Command{
	Use:   "inject",
	Short: "Publish a synthetic exception to the inbound queue",
	Long:  `Inject builds an exception record with a generated ID and pushes it onto the inbound queue of a running engine. Requires redis to be configured.`,
	Run:   runInject,
}

func init() {
	injectCmd.Flags().StringVar(&injectType, "type", "SETTLEMENT_MISMATCH", "exception type")
	injectCmd.Flags().StringSliceVar(&injectCodes, "codes", []string{"AMOUNT_MISMATCH"}, "reason codes")
	injectCmd.Flags().Float64Var(&injectMatch, "match", 0.4, "match score in [0,1], -1 to omit")
	injectCmd.Flags().IntVar(&injectRetries, "retries", 0, "retry count")
	injectCmd.Flags().StringVar(&injectAgent, "agent", "inject-cli", "source agent name")
	rootCmd.AddCommand(injectCmd)
}

func runInject(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()
	stylelog.InitDefault()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Redis.URL == "" {
		slog.Error("Inject requires redis; no redis URL configured")
		os.Exit(1)
	}

	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	rec := domain.ExceptionRecord{
		ID:            uuid.New().String(),
		TradeID:       "trade-" + uuid.New().String(),
		ExceptionType: domain.ExceptionType(injectType),
		ReasonCodes:   injectCodes,
		RetryCount:    injectRetries,
		SourceAgent:   injectAgent,
		CreatedAt:     time.Now().UTC(),
	}
	if injectMatch >= 0 {
		match := injectMatch
		rec.MatchScore = &match
	}
	if err := rec.Validate(); err != nil {
		slog.Error("Refusing to inject invalid record", "error", err)
		os.Exit(1)
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		slog.Error("Failed to marshal record", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Enqueue(ctx, queue.InboundQueue, payload); err != nil {
		slog.Error("Failed to enqueue exception", "error", err)
		os.Exit(1)
	}

	slog.Info("Exception injected", "id", rec.ID, "type", rec.ExceptionType, "codes", rec.ReasonCodes)
}
