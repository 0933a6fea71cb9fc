package setup

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"swarmpool/internal/discord"
	"swarmpool/internal/ens"
	"swarmpool/internal/ipfs"
	"swarmpool/internal/sidecar"
	"swarmpool/internal/signing"
	"swarmpool/internal/transport"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Dependencies struct {
	Log       *zap.SugaredLogger
	Env       Env
	Operator  *signing.Operator
	Verifier  *ens.Verifier
	Store     *ipfs.Client
	Transport *transport.Transport
	Sidecar   *sidecar.Client
	Mongo     *mongo.Client
}

type Env struct {
	PoolENS         string
	EpochDuration   time.Duration
	ClaimTimeout    time.Duration
	MinerTimeout    time.Duration
	ContentStoreAPI string
	SidecarURL      string
	EnsGatewayURL   string
	DiscordURL      string
	Debug           bool
}

func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func GetEnvOrPanic(key string, logger *zap.SugaredLogger) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	logger.Panicf("Could not find env key [%s]", key)
	return ""
}

func getEnvSeconds(key string, fallback int, logger *zap.SugaredLogger) time.Duration {
	raw := GetEnv(key, strconv.Itoa(fallback))
	secs, err := strconv.Atoi(raw)
	if err != nil {
		logger.Errorf("Failed converting env variable %s to int", key)
		secs = fallback
	}
	return time.Duration(secs) * time.Second
}

func Init(opts ...any) *Dependencies {
	var level *zapcore.Level
	if len(opts) != 0 {
		l := opts[0].(zapcore.Level)
		level = &l
	}
	// Startup
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	if level != nil {
		cfg.Level.SetLevel(*level)
	}
	logger, err := cfg.Build()
	if err != nil {
		panic("Failed to get logger")
	}
	sugar := logger.Sugar()

	// Env Variables
	err = godotenv.Load()
	if err != nil {
		sugar.Debugw("No .env file loaded", "error", err)
	}
	DiscordURL := GetEnv("DISCORD_URL", "")
	PoolENS := GetEnvOrPanic("POOL_ENS", sugar)
	OperatorKey := GetEnvOrPanic("OPERATOR_PRIVATE_KEY", sugar)
	ContentStoreAPI := GetEnv("CONTENT_STORE_API", "localhost:5001")
	SidecarURL := GetEnv("SIDECAR_URL", "redis://localhost:6379/0")
	EnsGatewayURL := GetEnv("ENS_GATEWAY_URL", "https://gateway.swarmos.network")
	Debug := GetEnv("DEBUG", "0")

	EpochDuration := getEnvSeconds("EPOCH_DURATION_SECONDS", 3600, sugar)
	ClaimTimeout := getEnvSeconds("CLAIM_TIMEOUT_SECONDS", 300, sugar)
	MinerTimeout := getEnvSeconds("MINER_TIMEOUT_SECONDS", 120, sugar)
	sugar.Infof(
		"Running with epoch_duration=%s claim_timeout=%s miner_timeout=%s",
		EpochDuration,
		ClaimTimeout,
		MinerTimeout,
	)

	debug := Debug == "1"
	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.Sampling = nil
		if level != nil {
			cfg.Level.SetLevel(*level)
		}
		logger, err := cfg.Build()
		if err != nil {
			panic("Failed to get logger")
		}
		sugar = logger.Sugar()
	}

	// A daemon that cannot sign snapshots refuses to start; so does one
	// without a reachable sidecar (below).
	operator, err := signing.LoadOperator(OperatorKey)
	if err != nil {
		sugar.Fatalw("Failed loading operator key", "error", err)
	}

	sc, err := sidecar.New(SidecarURL)
	if err != nil {
		sugar.Fatalw("Failed connecting to sidecar", "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sc.Ping(ctx); err != nil {
		sugar.Fatalw("Failed pinging sidecar", "error", err)
	}

	mongoClient, err := InitMongo()
	if err != nil {
		sugar.Warnw("Running without mongo archive", "error", err)
		mongoClient = nil
	}

	sugar = sugar.WithOptions(zap.Hooks(
		func(e zapcore.Entry) error {
			if e.Level != zap.ErrorLevel {
				return nil
			}
			go func() {
				color := "15548997"
				title := "Pool Daemon Error"
				desc := fmt.Sprintf("%s\n\n%s", e.Message, e.Stack)
				uname := "Pool Daemon Logs"
				msg := discord.Message{
					Username: &uname,
					Embeds: &[]discord.Embed{{
						Title:       &title,
						Description: &desc,
						Color:       &color,
					}},
				}
				_ = discord.SendDiscordMessage(DiscordURL, msg)
			}()

			return nil
		},
	))

	gatewayClient := &http.Client{Transport: &http.Transport{
		TLSHandshakeTimeout: 5 * time.Second,
		DisableKeepAlives:   true,
	}, Timeout: 30 * time.Second}
	resolver := ens.NewGatewayResolver(gatewayClient, EnsGatewayURL, sugar)

	return &Dependencies{
		Log:       sugar,
		Operator:  operator,
		Verifier:  ens.NewVerifier(resolver, sugar),
		Store:     ipfs.NewClient(ContentStoreAPI, sugar),
		Transport: transport.New(ContentStoreAPI, sugar),
		Sidecar:   sc,
		Mongo:     mongoClient,
		Env: Env{
			PoolENS:         PoolENS,
			EpochDuration:   EpochDuration,
			ClaimTimeout:    ClaimTimeout,
			MinerTimeout:    MinerTimeout,
			ContentStoreAPI: ContentStoreAPI,
			SidecarURL:      SidecarURL,
			EnsGatewayURL:   EnsGatewayURL,
			DiscordURL:      DiscordURL,
			Debug:           debug,
		},
	}
}
