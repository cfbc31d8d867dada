package commands

import (
	"github.com/dyluth/warren/internal/api"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve missions, logs and artifacts over HTTP",
	Long: `Start the HTTP API.

Endpoints:
  POST /v1/sessions/:session/missions        {"objective": "..."}
  GET  /v1/sessions/:session/entries?limit=N
  GET  /v1/sessions/:session/context?limit=N
  GET  /v1/sessions/:session/artifacts/:key
  PUT  /v1/sessions/:session/artifacts/:key  (JSON body)
  GET  /healthz

Examples:
  warren serve
  warren serve --addr 127.0.0.1:9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr from config, then :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := missionContext(cmd.Context(), 0)
	defer cancel()

	s, err := newStack(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	addr := serveAddr
	if addr == "" {
		addr = s.cfg.Server.Addr
	}

	if logrus.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	opts := api.Options{Logger: logrus.StandardLogger()}
	if pinger, ok := s.store.(api.Pinger); ok {
		opts.Health = pinger
	}

	return api.New(s.hub, opts).ListenAndServe(ctx, addr)
}
