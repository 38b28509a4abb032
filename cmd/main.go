package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsbedrock "github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"

	"intake-router/handler"
	"intake-router/internal/conversation"
	"intake-router/internal/integrations/bedrock"
	"intake-router/internal/integrations/paramstore"
	"intake-router/internal/integrations/ragworker"
	"intake-router/internal/repository"
	"intake-router/internal/risk"
	"intake-router/internal/usecase"
)

func main() {
	ctx := context.Background()

	// Local runs only; in Lambda there is no .env file.
	_ = godotenv.Load()

	// ---- Configuration (read only here) ----
	sessionsTable := mustEnv("SESSIONS_TABLE")
	doctorsTable := mustEnv("DOCTORS_TABLE")
	schedulesTable := mustEnv("SCHEDULES_TABLE")
	workshopsTable := mustEnv("WORKSHOPS_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	ragFunction := os.Getenv("RAG_FUNCTION")
	historyLimit := envInt("HISTORY_LIMIT", conversation.DefaultHistoryLimit)
	sessionTTL := time.Duration(envInt("SESSION_TTL_MINUTES", 60)) * time.Minute
	maxMessageLen := envInt("MAX_MESSAGE_LENGTH", 1000)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	loader, err := paramstore.NewConfigLoader(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create config loader", "err", err)
		os.Exit(1)
	}
	routerCfg, err := loader.Load(ctx)
	if err != nil {
		slog.Error("failed to load router configuration", "err", err)
		os.Exit(1)
	}

	triggers := risk.DefaultTriggerTable()
	if routerCfg.TriggerTableJSON != "" {
		triggers, err = risk.ParseTriggerTable(routerCfg.TriggerTableJSON)
		if err != nil {
			slog.Error("invalid trigger table configuration", "err", err)
			os.Exit(1)
		}
	}

	dynamoClient := awsdynamodb.NewFromConfig(cfg)
	sessions, err := repository.NewSessionClient(dynamoClient, sessionsTable)
	if err != nil {
		slog.Error("failed to create session client", "err", err)
		os.Exit(1)
	}
	directory, err := repository.NewDirectoryClient(dynamoClient, doctorsTable, schedulesTable)
	if err != nil {
		slog.Error("failed to create directory client", "err", err)
		os.Exit(1)
	}
	workshops, err := repository.NewWorkshopClient(dynamoClient, workshopsTable)
	if err != nil {
		slog.Error("failed to create workshop client", "err", err)
		os.Exit(1)
	}

	recorder, err := conversation.NewRecorder(sessions, historyLimit, sessionTTL)
	if err != nil {
		slog.Error("failed to create recorder", "err", err)
		os.Exit(1)
	}

	llm, err := bedrock.NewClient(awsbedrock.NewFromConfig(cfg), routerCfg.ModelID)
	if err != nil {
		slog.Error("failed to create Bedrock client", "err", err)
		os.Exit(1)
	}

	retriever, err := ragworker.NewClient(awslambda.NewFromConfig(cfg), ragFunction)
	if err != nil {
		slog.Error("failed to create RAG worker client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	routeService, err := usecase.NewRouteService(recorder, llm, directory, workshops, retriever,
		risk.NewMachine(triggers), maxMessageLen)
	if err != nil {
		slog.Error("failed to create route service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(routeService)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
