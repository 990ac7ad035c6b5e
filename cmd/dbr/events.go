package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/rnwolf/dbr/internal/client"
	"github.com/rnwolf/dbr/internal/events"
	"github.com/rnwolf/dbr/internal/model"
)

var eventsCmd = &cobra.Command{
	Use:     "events",
	Short:   "Inspect the event log",
	GroupID: "views",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the organization's most recent events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		org, err := requireOrg()
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		evs, err := dbrClient.ListEvents(cmd.Context(), org, limit)
		if err != nil {
			return fmt.Errorf("listing events: %w", err)
		}
		return emit(cmd.OutOrStdout(), evs, func(w io.Writer) error {
			return printEvents(w, evs)
		})
	},
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow events as they happen (NATS when configured, otherwise SSE)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, _ := cmd.Flags().GetStringSlice("topics")
		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			natsURL = os.Getenv("DBR_NATS_URL")
		}
		if natsURL == "" {
			natsURL = activeRemoteNATSURL()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		show := func(ev *model.Event) error {
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), ev)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  %-28s %-12s %s\n",
				ev.CreatedAt.Local().Format(time.TimeOnly), ev.Topic, ev.OrganizationID, ev.EntityID)
			return err
		}

		if natsURL != "" {
			return watchNATS(ctx, natsURL, orgID, show)
		}
		return watchSSE(ctx, client.NewHTTPClient(httpURL), orgID, topics, show)
	},
}

// watchNATS subscribes to the organization's subjects (or all of them).
func watchNATS(ctx context.Context, natsURL, org string, fn func(*model.Event) error) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	subject := events.AllSubjects
	if org != "" {
		subject = events.OrganizationSubjects(org)
	}
	ch, cancel, err := sub.Subscribe(subject)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := fn(ev); err != nil {
				return err
			}
		}
	}
}

const sseRetryDelay = 2 * time.Second

// watchSSE follows the server's event stream, reconnecting with
// Last-Event-ID so nothing still in the server's replay buffer is missed.
func watchSSE(ctx context.Context, c *client.HTTPClient, org string, topics []string, fn func(*model.Event) error) error {
	lastID := ""
	for {
		stream, err := c.OpenEventStream(ctx, org, topics, lastID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("opening event stream: %w", err)
		}
		streamErr, fnErr := followStream(stream, fn)
		lastID = stream.LastID
		stream.Close()
		if fnErr != nil {
			return fnErr
		}
		if ctx.Err() != nil {
			return nil
		}
		if !errors.Is(streamErr, io.EOF) {
			log.Printf("event stream interrupted: %v", streamErr)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sseRetryDelay):
		}
	}
}

// followStream hands events to fn until the stream ends or fn fails.
func followStream(stream *client.EventStream, fn func(*model.Event) error) (streamErr, fnErr error) {
	for {
		ev, err := stream.Next()
		if err != nil {
			return err, nil
		}
		if err := fn(ev); err != nil {
			return nil, err
		}
	}
}

func init() {
	eventsListCmd.Flags().Int("limit", 50, "maximum number of events")

	eventsWatchCmd.Flags().StringSlice("topics", nil, "topic patterns for SSE, e.g. dbr.schedule.*")
	eventsWatchCmd.Flags().String("nats", "", "NATS URL (default DBR_NATS_URL or the active remote's)")

	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsWatchCmd)
}
