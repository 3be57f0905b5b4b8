//go:build protogen

package parkingquery

import (
	"context"
	"time"

	"github.com/slotpark/slotpark/libs/grpcx"
	parkingv1 "github.com/slotpark/slotpark/protos/gen/parking/v1"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Client asks the parking service's read-only query surface about a
// slot. The history service uses it to annotate timeline lookups with
// what the admission engine would say right now.
type Client struct {
	conn   *grpc.ClientConn
	client parkingv1.ParkingQueryServiceClient
}

func NewClient(addr string) (*Client, error) {
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		conn:   conn,
		client: parkingv1.NewParkingQueryServiceClient(conn),
	}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) CheckAvailability(ctx context.Context, slotID string, start, end time.Time) (*parkingv1.CheckAvailabilityResponse, error) {
	return c.client.CheckAvailability(ctx, &parkingv1.CheckAvailabilityRequest{
		SlotId: slotID,
		Start:  timestamppb.New(start),
		End:    timestamppb.New(end),
	})
}

func (c *Client) QuoteCost(ctx context.Context, slotID string, start, end time.Time) (*parkingv1.QuoteCostResponse, error) {
	return c.client.QuoteCost(ctx, &parkingv1.QuoteCostRequest{
		SlotId: slotID,
		Start:  timestamppb.New(start),
		End:    timestamppb.New(end),
	})
}
