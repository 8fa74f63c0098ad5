package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	client "github.com/peteraglen/giftcode-client"
	"github.com/peteraglen/giftcode-client/alerts"
	"github.com/peteraglen/giftcode-client/api"
	"github.com/peteraglen/giftcode-client/config"
	"github.com/peteraglen/giftcode-client/logadapter"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "giftcode",
		Short:        "Look up players and redeem gift codes",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	var fid string

	player := &cobra.Command{
		Use:   "player",
		Short: "Fetch player data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, configPath, func(ctx context.Context, s *api.Service) (*client.Response, error) {
				return s.FetchPlayer(ctx, payload(fid, ""))
			})
		},
	}
	player.Flags().StringVar(&fid, "fid", "", "player id")
	_ = player.MarkFlagRequired("fid")

	var code string

	redeem := &cobra.Command{
		Use:   "redeem",
		Short: "Redeem a gift code for a player",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, configPath, func(ctx context.Context, s *api.Service) (*client.Response, error) {
				return s.RedeemGiftCode(ctx, payload(fid, code))
			})
		},
	}
	redeem.Flags().StringVar(&fid, "fid", "", "player id")
	redeem.Flags().StringVar(&code, "code", "", "gift code")
	_ = redeem.MarkFlagRequired("fid")
	_ = redeem.MarkFlagRequired("code")

	root.AddCommand(player, redeem)

	return root
}

// payload leaves the time field to the signer.
func payload(fid, code string) map[string]string {
	p := map[string]string{"fid": fid}

	if code != "" {
		p["cdk"] = code
	}

	return p
}

func run(cmd *cobra.Command, configPath string, call func(context.Context, *api.Service) (*client.Response, error)) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logadapter.NewConsole(cfg.Log.Level, cfg.Log.Pretty)

	notifier, flush, err := newNotifier(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer flush()

	opts := []client.Option{
		client.WithRequestLogger(logger),
		client.WithNotifier(notifier),
		client.WithMaxAttempts(cfg.Retry.MaxAttempts),
		client.WithBaseDelay(cfg.Retry.BaseDelay),
		client.WithTimeout(cfg.API.Timeout),
		client.WithBusyCode(cfg.API.BusyCode),
	}

	if cfg.API.RateLimit > 0 {
		opts = append(opts, client.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.API.RateLimit), 1)))
	}

	c := client.New(cfg.API.BaseURL, opts...)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Close()

	s := api.NewService(c, api.MD5Signer{Secret: cfg.API.Secret}, api.WithWarmUp(cfg.API.WarmUp))

	resp, err := call(ctx, s)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(resp.Body))

	return err
}

// newNotifier returns the notifier for cfg and a function that waits for
// pending alert deliveries.
func newNotifier(ctx context.Context, cfg *config.Config, logger client.RequestLogger) (client.Notifier, func(), error) {
	logNotifier := &client.LogNotifier{Logger: logger}

	if cfg.Alerts.URL == "" {
		return logNotifier, func() {}, nil
	}

	opts := []alerts.Option{
		alerts.WithRequestLogger(logger),
		alerts.WithRetryAlerts(cfg.Alerts.RetryAlerts),
	}

	if cfg.Alerts.Token != "" {
		opts = append(opts, alerts.WithAuthScheme("Bearer"), alerts.WithAuthToken(cfg.Alerts.Token))
	}

	alertNotifier := alerts.New(cfg.Alerts.URL, opts...)
	if err := alertNotifier.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to connect alert notifier: %w", err)
	}

	return client.MultiNotifier{logNotifier, alertNotifier}, alertNotifier.Wait, nil
}
