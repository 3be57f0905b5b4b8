//go:build protogen

package parkingquery

import (
	"context"
	"net"
	"testing"
	"time"

	parkingv1 "github.com/slotpark/slotpark/protos/gen/parking/v1"
	"google.golang.org/grpc"
)

type testServer struct {
	parkingv1.UnimplementedParkingQueryServiceServer
}

func (s *testServer) CheckAvailability(_ context.Context, req *parkingv1.CheckAvailabilityRequest) (*parkingv1.CheckAvailabilityResponse, error) {
	return &parkingv1.CheckAvailabilityResponse{
		SlotId:    req.GetSlotId(),
		Available: false,
		Reason:    "scheduling_conflict",
		Detail:    "slot is already booked from 2026-03-02T09:00:00Z to 2026-03-02T11:00:00Z",
	}, nil
}

func (s *testServer) QuoteCost(_ context.Context, req *parkingv1.QuoteCostRequest) (*parkingv1.QuoteCostResponse, error) {
	return &parkingv1.QuoteCostResponse{
		SlotId:     req.GetSlotId(),
		Amount:     12.50,
		HourlyRate: 2.50,
	}, nil
}

func TestClient_RoundTrip(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	srv := grpc.NewServer()
	parkingv1.RegisterParkingQueryServiceServer(srv, &testServer{})

	go func() {
		_ = srv.Serve(lis)
	}()
	defer srv.Stop()

	client, err := NewClient(lis.Addr().String())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	avail, err := client.CheckAvailability(ctx, "slot-1", start, end)
	if err != nil {
		t.Fatalf("check availability: %v", err)
	}
	if avail.Available {
		t.Fatalf("expected unavailable")
	}
	if avail.Reason != "scheduling_conflict" {
		t.Fatalf("unexpected reason: %s", avail.Reason)
	}

	quote, err := client.QuoteCost(ctx, "slot-1", start, end)
	if err != nil {
		t.Fatalf("quote cost: %v", err)
	}
	if quote.Amount != 12.50 {
		t.Fatalf("unexpected amount: %v", quote.Amount)
	}
}
