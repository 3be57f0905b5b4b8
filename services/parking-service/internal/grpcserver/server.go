//go:build protogen

package grpcserver

import (
	"context"

	parkingv1 "github.com/slotpark/slotpark/protos/gen/parking/v1"
	"github.com/slotpark/slotpark/services/parking-service/internal/booking"
	"google.golang.org/grpc"
)

// server answers availability and pricing questions for internal
// callers. Admission stays HTTP-only; this surface is read-only.
type server struct {
	parkingv1.UnimplementedParkingQueryServiceServer
	engine *booking.Engine
}

func Register(grpcServer *grpc.Server, engine *booking.Engine) {
	parkingv1.RegisterParkingQueryServiceServer(grpcServer, &server{engine: engine})
}

func (s *server) CheckAvailability(ctx context.Context, req *parkingv1.CheckAvailabilityRequest) (*parkingv1.CheckAvailabilityResponse, error) {
	available, rej, err := s.engine.CheckAvailability(ctx, req.GetSlotId(), req.GetStart().AsTime(), req.GetEnd().AsTime())
	if err != nil {
		return nil, err
	}

	resp := &parkingv1.CheckAvailabilityResponse{
		SlotId:    req.GetSlotId(),
		Available: available,
	}
	if rej != nil {
		resp.Reason = rej.Code
		resp.Detail = rej.Message
	}
	return resp, nil
}

func (s *server) QuoteCost(ctx context.Context, req *parkingv1.QuoteCostRequest) (*parkingv1.QuoteCostResponse, error) {
	quote, rej, err := s.engine.Quote(ctx, req.GetSlotId(), req.GetStart().AsTime(), req.GetEnd().AsTime())
	if err != nil {
		return nil, err
	}

	if rej != nil {
		return &parkingv1.QuoteCostResponse{
			SlotId:   req.GetSlotId(),
			Rejected: true,
			Reason:   rej.Code,
			Detail:   rej.Message,
		}, nil
	}

	resp := &parkingv1.QuoteCostResponse{
		SlotId:     req.GetSlotId(),
		Amount:     quote.Amount,
		HourlyRate: quote.HourlyRate,
	}
	if quote.DailyRate != nil {
		resp.DailyRate = *quote.DailyRate
	}
	return resp, nil
}
