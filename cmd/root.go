package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/thellimist/repoctx/internal/aggregator"
	"github.com/thellimist/repoctx/internal/auth"
	"github.com/thellimist/repoctx/internal/config"
	"github.com/thellimist/repoctx/internal/mcp"
	"github.com/thellimist/repoctx/internal/metrics"
)

var appVersion = "dev"

func SetVersion(v string) {
	appVersion = v
}

var (
	flagURL             string
	flagWorkspace       string
	flagRepository      string
	flagAuthToken       string
	flagAuthType        string
	flagClientID        string
	flagClientSecret    string
	flagTokenURL        string
	flagScopes          []string
	flagKeyFile         string
	flagTimeout         int
	flagConcurrency     int
	flagSaveCredentials bool
	flagVerbose         bool
	flagQuiet           bool
)

var rootCmd = &cobra.Command{
	Use:   "repoctx",
	Short: "Pull repository code from an MCP server as assistant context",
	Long: `repoctx talks to an MCP server fronting a remote repository host and turns
free-text questions into bounded bundles of relevant source files.

Examples:
  # Relevant code for a question
  repoctx context "parse JSON" --lang go --url https://mcp.example.com/mcp --workspace acme --repository widgets

  # Repository overview
  repoctx structure

  # Serve the assistant context over HTTP
  repoctx serve --listen :8090`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&flagURL, "url", "", "MCP server URL (env REPOCTX_SERVER_URL, default "+config.DefaultServerURL+")")
	f.StringVar(&flagWorkspace, "workspace", "", "repository host workspace (env REPOCTX_WORKSPACE)")
	f.StringVar(&flagRepository, "repository", "", "repository slug (env REPOCTX_REPOSITORY)")
	f.StringVar(&flagAuthToken, "auth-token", "", "bearer token for authenticated MCP servers (env REPOCTX_ACCESS_TOKEN)")
	f.StringVar(&flagAuthType, "auth-type", "", "none, bearer, client_credentials or google_sa")
	f.StringVar(&flagClientID, "client-id", "", "OAuth2 client ID for client_credentials")
	f.StringVar(&flagClientSecret, "client-secret", "", "OAuth2 client secret for client_credentials")
	f.StringVar(&flagTokenURL, "token-url", "", "OAuth2 token endpoint for client_credentials")
	f.StringSliceVar(&flagScopes, "scopes", nil, "OAuth2 scopes (comma-separated)")
	f.StringVar(&flagKeyFile, "key-file", "", "Google service account key file for google_sa")
	f.IntVar(&flagTimeout, "timeout", 30000, "timeout in milliseconds for each command")
	f.IntVar(&flagConcurrency, "concurrency", 1, "number of candidate files fetched at once")
	f.BoolVar(&flagSaveCredentials, "save-credentials", false, "persist auth token to ~/.repoctx/credentials.json")
	f.BoolVar(&flagVerbose, "verbose", false, "log debug output to stderr")
	f.BoolVar(&flagQuiet, "quiet", false, "only log errors")

	rootCmd.AddCommand(initCmd, resourcesCmd, readCmd, fileCmd, searchCmd, contextCmd, structureCmd, askCmd, serveCmd)
	rootCmd.SetVersionTemplate(fmt.Sprintf("repoctx v%s\n", appVersion))
}

func Execute() error {
	rootCmd.Version = appVersion
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// session bundles everything a command needs to talk to the server.
type session struct {
	logger     *zap.Logger
	endpoint   config.Endpoint
	client     *mcp.Client
	aggregator *aggregator.Aggregator
	registry   *prometheus.Registry
	server     *mcp.InitializeResult
}

func (s *session) Close() {
	_ = s.client.Close()
	_ = s.logger.Sync()
}

// connect validates the configuration, builds the client and performs the
// handshake under --timeout. The token source lives as long as the
// command's context, not the handshake. With strict unset a failed
// handshake is only logged, leaving the best-effort commands to degrade on
// their own.
func connect(cmd *cobra.Command, strict bool) (*session, error) {
	if flagVerbose && flagQuiet {
		return nil, fmt.Errorf("--verbose and --quiet cannot be used together")
	}

	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	endpoint := config.Endpoint{
		ServerURL:  flagURL,
		Workspace:  flagWorkspace,
		Repository: flagRepository,
	}.FromEnv()

	cred := auth.LookupCredential(flagAuthToken, endpoint.ServerURL, auth.DefaultCredentialsPath())
	endpoint.AccessToken = cred.Token

	if err := endpoint.Validate(); err != nil {
		return nil, err
	}

	authType := flagAuthType
	if authType == "" {
		authType = cred.AuthType
	}
	applyAuthFlags(&cred)

	provider, err := auth.NewProvider(authType, cred)
	if err != nil {
		return nil, err
	}
	tokens, err := provider.TokenSource(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	if flagSaveCredentials && endpoint.HasCredential() {
		if err := saveToken(endpoint.ServerURL, endpoint.AccessToken); err != nil {
			logger.Warn("could not save credentials", zap.Error(err))
		}
	}

	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(registry)
	if err != nil {
		return nil, err
	}

	transport := mcp.NewHTTPTransport(endpoint.ServerURL, tokens)
	client := mcp.NewClient(transport,
		mcp.Repository{Workspace: endpoint.Workspace, Repository: endpoint.Repository},
		mcp.WithLogger(logger.Named("mcp")),
		mcp.WithObserver(recorder),
		mcp.WithClientInfo("repoctx", appVersion),
	)

	s := &session{
		logger:   logger,
		endpoint: endpoint,
		client:   client,
		aggregator: aggregator.New(client,
			aggregator.WithLogger(logger.Named("aggregator")),
			aggregator.WithConcurrency(flagConcurrency),
		),
		registry: registry,
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	logger.Debug("performing MCP handshake", zap.String("url", endpoint.ServerURL))
	result, err := client.Initialize(ctx)
	if err != nil {
		if strict {
			s.Close()
			return nil, handshakeError(ctx, endpoint.ServerURL, err)
		}
		logger.Error("MCP initialization failed", zap.Error(err))
		return s, nil
	}
	logger.Debug("handshake complete",
		zap.String("server", result.ServerInfo.Name),
		zap.String("protocol", result.ProtocolVersion),
	)
	s.server = result
	return s, nil
}

// handshakeError words a failed handshake. Only an expired --timeout is
// reported as a timeout; an interrupt keeps the underlying error.
func handshakeError(ctx context.Context, serverURL string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("MCP server did not respond within %dms", flagTimeout)
	}
	return fmt.Errorf("MCP server at %s did not complete initialization handshake: %w", serverURL, err)
}

func applyAuthFlags(cred *auth.ServerCredential) {
	if flagClientID != "" {
		cred.ClientID = flagClientID
	}
	if flagClientSecret != "" {
		cred.ClientSecret = flagClientSecret
	}
	if flagTokenURL != "" {
		cred.TokenURL = flagTokenURL
	}
	if len(flagScopes) > 0 {
		cred.Scopes = flagScopes
	}
	if flagKeyFile != "" {
		cred.KeyFile = flagKeyFile
	}
}

func saveToken(serverURL, token string) error {
	path := auth.DefaultCredentialsPath()
	if path == "" {
		return fmt.Errorf("cannot determine credentials path")
	}
	creds, err := auth.LoadCredentials(path)
	if err != nil {
		return err
	}
	auth.SetToken(creds, serverURL, token)
	return auth.SaveCredentials(path, creds)
}

// newLogger builds a JSON logger on stderr so stdout stays clean for
// command output.
func newLogger() (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.WarnLevel)
	switch {
	case flagVerbose:
		level.SetLevel(zapcore.DebugLevel)
	case flagQuiet:
		level.SetLevel(zapcore.ErrorLevel)
	}

	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = level
	loggerConfig.OutputPaths = []string{"stderr"}
	loggerConfig.ErrorOutputPaths = []string{"stderr"}
	return loggerConfig.Build()
}

// commandContext applies --timeout to the command's context.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), time.Duration(flagTimeout)*time.Millisecond)
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
