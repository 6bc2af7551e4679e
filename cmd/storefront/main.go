package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/linemk/storefront/internal/lib/logger"
	"github.com/linemk/storefront/internal/service"
	"github.com/linemk/storefront/internal/storefront/api"
	"github.com/linemk/storefront/internal/storefront/state"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("Error:"), describe(err))
		os.Exit(1)
	}
}

// cli общие зависимости команд, заполняются в PersistentPreRunE
type cli struct {
	apiURL      string
	sessionPath string
	verbose     bool
	timeout     time.Duration

	out    io.Writer
	log    *slog.Logger
	store  *state.Store
	client *api.Client
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	cmd := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront client: catalog, orders and checkout",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
	}

	cmd.PersistentFlags().StringVar(&c.apiURL, "api", envOr("STOREFRONT_API", "http://localhost:8080"), "backend base URL")
	cmd.PersistentFlags().StringVar(&c.sessionPath, "session", defaultSessionPath(), "session file")
	cmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log requests to stderr")
	cmd.PersistentFlags().DurationVar(&c.timeout, "timeout", 30*time.Second, "request timeout")

	cmd.AddCommand(
		c.registerCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.productsCmd(),
		c.productCmd(),
		c.reviewCmd(),
		c.ordersCmd(),
		c.orderCmd(),
		c.checkoutCmd(),
	)
	return cmd
}

func (c *cli) init() error {
	if c.verbose {
		c.log = logger.New(logger.EnvLocal, os.Stderr)
	} else {
		c.log = logger.Discard()
	}

	c.store = state.New()
	if err := c.store.LoadSession(c.sessionPath); err != nil {
		return err
	}

	opts := []api.Option{}
	if sess, ok := c.store.Session(); ok {
		opts = append(opts, api.WithToken(sess.Token))
	}
	c.client = api.NewClient(c.apiURL, opts...)
	c.log.Debug("client ready", slog.String("api", c.apiURL), slog.String("session", c.sessionPath))
	return nil
}

func (c *cli) requireSession() (state.Session, error) {
	sess, ok := c.store.Session()
	if !ok {
		return state.Session{}, fmt.Errorf("%w: not logged in, run `storefront login`", service.ErrUnauthorized)
	}
	return sess, nil
}

func (c *cli) saveAuth(res *service.AuthResult) error {
	c.store.SetSession(state.SessionFromAuth(res))
	c.client.SetToken(res.Token)
	return c.store.SaveSession(c.sessionPath)
}

func (c *cli) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), c.timeout)
}

// describe сообщение ошибки для пользователя; для ответа сервера только его текст
func describe(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "storefront", "session.json")
}
