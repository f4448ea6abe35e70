package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/reservas/internal/database"
	"github.com/MarkoPoloResearchLab/reservas/internal/httpapi"
	"github.com/MarkoPoloResearchLab/reservas/internal/server"
	"github.com/MarkoPoloResearchLab/reservas/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/reservas/pkg/reservas"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	flagListenAddr       = "listen-addr"
	flagGRPCListenAddr   = "grpc-listen-addr"
	flagDatabaseURL      = "database-url"
	flagAutoMigrate      = "auto-migrate"
	flagAllowedOrigins   = "allowed-origins"
	flagJWTSecret        = "jwt-secret"
	flagJWTIssuer        = "jwt-issuer"
	flagFrontendURL      = "frontend-url"
	flagPublicBaseURL    = "public-base-url"
	flagRequestTimeout   = "request-timeout"
	flagPendingTTL       = "pending-ttl"
	flagExpiryInterval   = "expiry-interval"
	flagDispatchInterval = "dispatch-interval"
	flagRedisAddr        = "redis-addr"
	flagRedisPassword    = "redis-password"
	flagRedisDB          = "redis-db"
	flagNotifyTransport  = "notify-transport"
	flagWebhookURL       = "notify-webhook-url"
	flagWebhookToken     = "notify-webhook-token"
	flagAMQPURL          = "notify-amqp-url"
	flagAMQPQueue        = "notify-amqp-queue"
	flagKafkaBrokers     = "notify-kafka-brokers"
	flagKafkaTopic       = "notify-kafka-topic"

	flagSubject = "subject"
	flagRole    = "role"
	flagName    = "name"
	flagEmail   = "email"
	flagTTL     = "ttl"

	envPrefix = "RESERVAS"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "reservasd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := server.Config{}
	cmd := &cobra.Command{
		Use:           "reservasd",
		Short:         "Restaurant reservation HTTP and gRPC server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, &cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx, cfg)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(flagListenAddr, "", "HTTP listen address (default :8080)")
	flags.String(flagGRPCListenAddr, "", "gRPC listen address (default :7000)")
	flags.String(flagDatabaseURL, "", "postgres://, mysql:// or sqlite:// database URL")
	flags.Bool(flagAutoMigrate, false, "create or update tables on startup (always on for sqlite)")
	flags.String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	flags.String(flagJWTSecret, "", "HS256 secret used to verify bearer tokens (required)")
	flags.String(flagJWTIssuer, "", "expected JWT issuer")
	flags.String(flagFrontendURL, "", "frontend origin used for confirmation redirects")
	flags.String(flagPublicBaseURL, "", "public API origin used in confirmation links")
	flags.Duration(flagRequestTimeout, 0, "HTTP request timeout")
	flags.Duration(flagPendingTTL, 0, "how long a reservation may stay unconfirmed")
	flags.Duration(flagExpiryInterval, 0, "interval between pending-reservation sweeps")
	flags.Duration(flagDispatchInterval, 0, "interval between notification outbox drains")
	flags.String(flagRedisAddr, "", "redis address for cross-replica slot locks")
	flags.String(flagRedisPassword, "", "redis password")
	flags.Int(flagRedisDB, 0, "redis database index")
	flags.String(flagNotifyTransport, "", "notification transport: log, webhook, amqp or kafka")
	flags.String(flagWebhookURL, "", "webhook endpoint receiving rendered emails")
	flags.String(flagWebhookToken, "", "bearer token sent to the webhook")
	flags.String(flagAMQPURL, "", "AMQP broker URL")
	flags.String(flagAMQPQueue, "", "AMQP queue name")
	flags.String(flagKafkaBrokers, "", "comma-separated Kafka brokers")
	flags.String(flagKafkaTopic, "", "Kafka topic")

	cmd.AddCommand(newExpireCommand(&cfg), newIssueTokenCommand(&cfg))
	return cmd
}

func newExpireCommand(cfg *server.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "expire-pending",
		Short: "Cancel unconfirmed reservations past their TTL and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return expirePending(cmd.Context(), *cfg, cmd)
		},
	}
}

func newIssueTokenCommand(cfg *server.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Print a signed bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString(flagSubject)
			role, _ := cmd.Flags().GetString(flagRole)
			name, _ := cmd.Flags().GetString(flagName)
			email, _ := cmd.Flags().GetString(flagEmail)
			ttl, _ := cmd.Flags().GetDuration(flagTTL)
			if strings.TrimSpace(subject) == "" {
				return fmt.Errorf("%s is required", flagSubject)
			}
			claims := httpapi.Claims{Role: string(reservas.ParseRole(role)), Name: name, Email: email}
			token, err := httpapi.IssueToken(cfg.JWTSecret, cfg.JWTIssuer, subject, claims, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String(flagSubject, "", "user id placed in the sub claim")
	cmd.Flags().String(flagRole, string(reservas.RoleUser), "user or admin")
	cmd.Flags().String(flagName, "", "display name")
	cmd.Flags().String(flagEmail, "", "email address")
	cmd.Flags().Duration(flagTTL, 24*time.Hour, "token lifetime")
	return cmd
}

func expirePending(ctx context.Context, cfg server.Config, cmd *cobra.Command) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := database.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()
	if cfg.AutoMigrate || driver == database.DriverSQLite {
		if err := database.PrepareSchema(gormDB); err != nil {
			return err
		}
	}

	service, err := reservas.NewService(gormstore.New(gormDB), time.Now, reservas.WithPendingTTL(cfg.PendingTTL))
	if err != nil {
		return fmt.Errorf("reservation service init: %w", err)
	}
	expired, err := service.ExpirePending(ctx)
	if err != nil {
		return err
	}
	logger.Info("expired pending reservations", zap.Int("count", expired))
	fmt.Fprintf(cmd.OutOrStdout(), "%d\n", expired)
	return nil
}

func loadConfig(cmd *cobra.Command, cfg *server.Config) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var bindErr error
	cmd.Root().PersistentFlags().VisitAll(func(flag *pflag.Flag) {
		if bindErr == nil {
			bindErr = v.BindPFlag(flag.Name, flag)
		}
	})
	if bindErr != nil {
		return bindErr
	}
	// Deployments commonly provide the unprefixed DATABASE_URL.
	if err := v.BindEnv(flagDatabaseURL, envPrefix+"_DATABASE_URL", "DATABASE_URL"); err != nil {
		return err
	}

	cfg.ListenAddr = strings.TrimSpace(v.GetString(flagListenAddr))
	cfg.GRPCListenAddr = strings.TrimSpace(v.GetString(flagGRPCListenAddr))
	cfg.DatabaseURL = strings.TrimSpace(v.GetString(flagDatabaseURL))
	cfg.AutoMigrate = v.GetBool(flagAutoMigrate)
	cfg.AllowedOrigins = server.ParseList(v.GetString(flagAllowedOrigins))
	cfg.JWTSecret = v.GetString(flagJWTSecret)
	cfg.JWTIssuer = strings.TrimSpace(v.GetString(flagJWTIssuer))
	cfg.FrontendURL = strings.TrimSpace(v.GetString(flagFrontendURL))
	cfg.PublicBaseURL = strings.TrimSpace(v.GetString(flagPublicBaseURL))
	cfg.RequestTimeout = v.GetDuration(flagRequestTimeout)
	cfg.PendingTTL = v.GetDuration(flagPendingTTL)
	cfg.ExpiryInterval = v.GetDuration(flagExpiryInterval)
	cfg.DispatchInterval = v.GetDuration(flagDispatchInterval)
	cfg.RedisAddr = strings.TrimSpace(v.GetString(flagRedisAddr))
	cfg.RedisPassword = v.GetString(flagRedisPassword)
	cfg.RedisDB = v.GetInt(flagRedisDB)
	cfg.Notify.Kind = strings.TrimSpace(v.GetString(flagNotifyTransport))
	cfg.Notify.WebhookURL = strings.TrimSpace(v.GetString(flagWebhookURL))
	cfg.Notify.WebhookToken = v.GetString(flagWebhookToken)
	cfg.Notify.AMQPURL = strings.TrimSpace(v.GetString(flagAMQPURL))
	cfg.Notify.AMQPQueue = strings.TrimSpace(v.GetString(flagAMQPQueue))
	cfg.Notify.KafkaBrokers = server.ParseList(v.GetString(flagKafkaBrokers))
	cfg.Notify.KafkaTopic = strings.TrimSpace(v.GetString(flagKafkaTopic))

	return cfg.Validate()
}
