package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/compose"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the assessment JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		specPath, _ := cmd.Flags().GetString("spec")
		addr, _ := cmd.Flags().GetString("addr")

		spec, err := compose.LoadSpecFile(specPath)
		if err != nil {
			return err
		}

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.release()
		if err := spec.Validate(rt.engine.Bank()); err != nil {
			return err
		}
		if addr == "" {
			addr = rt.cfg.HTTP.Addr
		}

		server := &http.Server{
			Addr:         addr,
			Handler:      httpapi.NewHandler(rt.engine, spec, rt.logger).Router(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			rt.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()

		rt.logger.Info("assessment API ready", "addr", addr, "questions", rt.engine.Bank().Len())
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("spec", "", "Default test specification (.json or .yaml) (required)")
	serveCmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
	_ = serveCmd.MarkFlagRequired("spec")
}
