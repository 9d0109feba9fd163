// Package serve runs the bot and the HTTP API.
package serve

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kassabot/cmd/root"
	"kassabot/internal/bot"
	"kassabot/internal/server"
)

var poll bool

// Cmd represents the serve command.
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot and the HTTP API",
	Long: `Serve starts the HTTP server with the webhook, parse, and register
endpoints. With --poll it additionally long-polls Telegram for updates, for
environments where no public webhook URL is available.`,
	RunE: serveFunc,
}

func init() {
	Cmd.Flags().BoolVar(&poll, "poll", false, "Long-poll Telegram instead of relying on the webhook")
}

func serveFunc(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := root.GetContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	var handler *bot.Handler
	if token := c.Config().Telegram.Token; token != "" {
		api, err := bot.Connect(token, c.Logger())
		if err != nil {
			return err
		}
		handler = bot.NewHandler(api, c.Processor(), c.Ledger(), c.Sessions(),
			c.Buckets().SecondaryMember, c.Logger())

		if poll {
			go func() {
				if err := bot.New(api, handler, c.Logger()).Run(ctx); err != nil && ctx.Err() == nil {
					c.Logger().WithError(err).Error("polling loop stopped")
				}
			}()
		}
	} else {
		c.Logger().Warn("telegram token not set, chat intake disabled")
	}

	srv := server.New(handler, c.Processor(), c.Ledger(),
		c.Buckets().DistinguishedMember, c.Buckets().SecondaryMember,
		c.Config().Server.WebhookSecret, c.Logger())
	return server.Run(ctx, c.Config().Server.Addr, srv, c.Logger())
}
