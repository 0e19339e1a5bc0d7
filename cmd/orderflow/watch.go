package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/darkden-lab/orderflow/internal/events"
	"github.com/darkden-lab/orderflow/internal/fulfillment"
	"github.com/darkden-lab/orderflow/internal/restaurant"
	"github.com/darkden-lab/orderflow/internal/streamclient"
	"github.com/darkden-lab/orderflow/internal/subscription"
)

func newWatchCmd() *cobra.Command {
	var (
		restaurantID string
		kinds        []string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Tail the live event stream",
		Long: `watch subscribes to the server's event stream and prints every event it
receives. With --restaurant it also tracks whether the restaurant is open.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return fmt.Errorf("a token is required (use --token or ORDERFLOW_TOKEN)")
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd.OutOrStdout(), restaurantID, kinds)
		},
	}
	cmd.Flags().StringVar(&restaurantID, "restaurant", "", "restaurant to watch (required for clients and administrators)")
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "only print these event types (repeatable)")
	return cmd
}

func runWatch(ctx context.Context, out io.Writer, restaurantID string, kinds []string) error {
	reg := subscription.NewRegistry()

	selected := events.Catalog
	if len(kinds) > 0 {
		selected = nil
		for _, k := range kinds {
			kind := events.Kind(k)
			if !kind.Known() {
				return fmt.Errorf("unknown event type %q", k)
			}
			selected = append(selected, kind)
		}
	}
	for _, kind := range selected {
		reg.Subscribe(kind, func(ev events.Event) error {
			data, err := json.Marshal(ev.Data)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s  %-26s %s\n", time.Now().Format("15:04:05"), ev.Kind, data)
			return nil
		})
	}

	if restaurantID != "" {
		rest, err := fetchRestaurant(ctx, restaurantID)
		if err != nil {
			fmt.Fprintf(out, "restaurant %s: %v (open/closed tracking disabled)\n", restaurantID, err)
		} else {
			tracker := restaurant.NewTracker(rest, func(open bool) {
				fmt.Fprintf(out, "%s  restaurant %s is now %s\n", time.Now().Format("15:04:05"), restaurantID, openWord(open))
			})
			defer tracker.Attach(reg)()
			go tracker.Run(ctx, restaurant.DefaultInterval)
			fmt.Fprintf(out, "restaurant %s is %s\n", rest.Name, openWord(tracker.IsOpen()))
		}
	}

	client := streamclient.New(streamclient.Config{
		URL:          strings.TrimRight(server, "/") + "/api/stream",
		Token:        token,
		RestaurantID: restaurantID,
		OnState: func(s streamclient.State) {
			fmt.Fprintf(out, "-- %s\n", s)
		},
	}, reg)

	err := client.Run(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func fetchRestaurant(ctx context.Context, id string) (*fulfillment.Restaurant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(server, "/")+"/api/restaurants/"+id, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}
	var rest fulfillment.Restaurant
	if err := json.NewDecoder(resp.Body).Decode(&rest); err != nil {
		return nil, fmt.Errorf("decode restaurant: %w", err)
	}
	return &rest, nil
}

func openWord(open bool) string {
	if open {
		return "open"
	}
	return "closed"
}
