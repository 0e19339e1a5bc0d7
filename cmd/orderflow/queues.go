package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/darkden-lab/orderflow/internal/dispatch"
	"github.com/darkden-lab/orderflow/internal/fulfillment"
)

func newQueuesCmd() *cobra.Command {
	var entity string
	cmd := &cobra.Command{
		Use:   "queues",
		Short: "Print which work queues each status belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printQueues(cmd.OutOrStdout(), entity)
		},
	}
	cmd.Flags().StringVar(&entity, "entity", "sale", "sale, order or reservation")
	return cmd
}

func printQueues(w io.Writer, entity string) error {
	backbone := []fulfillment.Status{
		fulfillment.StatusPending,
		fulfillment.StatusConfirmed,
		fulfillment.StatusPreparing,
		fulfillment.StatusReady,
		fulfillment.StatusOutForDelivery,
		fulfillment.StatusDelivered,
		fulfillment.StatusCancelled,
	}

	fmt.Fprintf(w, "  %-18s  %s\n", "STATUS", "QUEUES")
	fmt.Fprintf(w, "  %-18s  %s\n", "------", "------")
	switch entity {
	case "sale":
		for _, st := range backbone {
			if st == fulfillment.StatusOutForDelivery {
				continue
			}
			s := fulfillment.NewSale("example", "r", []fulfillment.SaleItem{{MenuID: "m", Quantity: 1}}, time.Now())
			s.Status = st
			fmt.Fprintf(w, "  %-18s  %s\n", st, dispatch.QueuesFor(s))
		}
	case "order":
		for _, st := range backbone {
			fmt.Fprintf(w, "  %-18s  %s\n", st, dispatch.QueuesFor(&fulfillment.Order{Status: st}))
		}
	case "reservation":
		for _, st := range []fulfillment.ReservationStatus{
			fulfillment.ReservationPending,
			fulfillment.ReservationConfirmed,
			fulfillment.ReservationCompleted,
			fulfillment.ReservationCancelled,
		} {
			fmt.Fprintf(w, "  %-18s  %s\n", st, dispatch.QueuesFor(&fulfillment.Reservation{Status: st}))
		}
	default:
		return fmt.Errorf("unknown entity %q (want sale, order or reservation)", entity)
	}
	return nil
}
