/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/teamtrack/apiserver/config"
	"github.com/teamtrack/apiserver/internal/mq"
	"github.com/teamtrack/apiserver/internal/notify"
)

// notifierCmd represents the notifier command
var notifierCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Consumes notification events from the message broker",
	Long: `Consumes notification events from the message broker and logs them.
Replace the log handler with a push delivery integration to send real
notifications. Usage:

	teamtrack notifier
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()

		broker, err := openBroker(cmd.Context(), cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect broker: %v\n", err)
			os.Exit(1)
		}
		defer broker.Close()

		log.Printf("notifier: consuming channel %q", cfg.Notify.Channel)
		err = broker.Subscribe(cmd.Context(), cfg.Notify.Channel, func(ctx context.Context, msg mq.Message) error {
			var event notify.Event
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				log.Printf("notifier: dropping malformed event %s: %v", msg.ID, err)
				return nil
			}
			log.Printf("notifier: %s for %q (device %s)", event.Kind, event.Name, event.DeviceToken)
			return nil
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "consumer stopped: %v\n", err)
			os.Exit(1)
		}
	},
}

func openBroker(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	switch cfg.Notify.Backend {
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	default:
		return nil, fmt.Errorf("unknown notify backend %q", cfg.Notify.Backend)
	}
}

func init() {
	rootCmd.AddCommand(notifierCmd)
}
