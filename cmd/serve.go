package cmd

import (
	"github.com/spf13/cobra"

	"github.com/thellimist/repoctx/internal/assist"
	"github.com/thellimist/repoctx/internal/server"
)

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve assistant context over HTTP",
	Long: `Serve assistant context over HTTP.

Routes:
  POST /v1/context    {"prompt", "language", "currentFile", "currentFileName"}
  GET  /v1/structure  repository overview as text
  GET  /metrics       Prometheus metrics for MCP calls
  GET  /healthz       liveness`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := connect(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		h := assist.NewHandler(s.aggregator, s.logger.Named("assist"))
		srv := server.New(h, s.aggregator, s.registry, s.logger.Named("server"))
		return srv.ListenAndServe(cmd.Context(), flagListen)
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", ":8090", "address to listen on")
}
