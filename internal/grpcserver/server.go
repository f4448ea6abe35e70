// Package grpcserver exposes seat availability to internal callers over gRPC.
package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/MarkoPoloResearchLab/reservas/pkg/reservas"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "reservas.v1.AvailabilityService"

	methodCheckAvailability = "CheckAvailability"
	methodGetSettings       = "GetSettings"

	fieldDate      = "date"
	fieldTime      = "time"
	fieldPartySize = "party_size"

	errorInvalidSlot      = "invalid_slot"
	errorInvalidPartySize = "invalid_party_size"
	errorNotFound         = "reservation_not_found"
	errorForbidden        = "forbidden"
	errorPolicy           = "policy_rejection"
)

// AvailabilityServer is the server API for the availability service.
type AvailabilityServer interface {
	CheckAvailability(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	GetSettings(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
}

// AvailabilityServiceServer answers availability questions from the domain
// service.
type AvailabilityServiceServer struct {
	reservationService *reservas.Service
}

func NewAvailabilityServiceServer(reservationService *reservas.Service) *AvailabilityServiceServer {
	return &AvailabilityServiceServer{reservationService: reservationService}
}

func (server *AvailabilityServiceServer) CheckAvailability(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	fields := request.GetFields()
	slot, err := reservas.NewSlot(fields[fieldDate].GetStringValue(), fields[fieldTime].GetStringValue())
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	requested := 1
	if value, ok := fields[fieldPartySize]; ok {
		requested, err = wholeNumber(value)
		if err != nil {
			return nil, mapToGRPCError(err)
		}
	}
	partySize, err := reservas.NewPartySize(requested)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	availability, err := server.reservationService.Availability(ctx, slot)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	response, err := structpb.NewStruct(map[string]any{
		fieldDate:   slot.Date(),
		fieldTime:   slot.Time(),
		"capacity":  availability.Capacity,
		"occupied":  availability.Occupied,
		"remaining": availability.Remaining,
		"available": availability.Admits(partySize),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return response, nil
}

func (server *AvailabilityServiceServer) GetSettings(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	snapshot, err := server.reservationService.Settings(ctx)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	response, err := structpb.NewStruct(map[string]any{
		"max_capacity":        snapshot.MaxCapacity,
		"reservations_paused": snapshot.ReservationsPaused,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return response, nil
}

// Register installs the availability and health services on server.
func Register(server *grpc.Server, availability AvailabilityServer) *health.Server {
	server.RegisterService(&availabilityServiceDesc, availability)
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	return healthServer
}

var availabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: methodCheckAvailability, Handler: unaryHandler(methodCheckAvailability, AvailabilityServer.CheckAvailability)},
		{MethodName: methodGetSettings, Handler: unaryHandler(methodGetSettings, AvailabilityServer.GetSettings)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "reservas/v1/availability.proto",
}

type structMethod func(AvailabilityServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call structMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := fmt.Sprintf("/%s/%s", ServiceName, method)
	return func(srv any, ctx context.Context, decode func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		request := new(structpb.Struct)
		if err := decode(request); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AvailabilityServer), ctx, request)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, request any) (any, error) {
			return call(srv.(AvailabilityServer), ctx, request.(*structpb.Struct))
		}
		return interceptor(ctx, request, info, handler)
	}
}

// Invoke calls method on a client connection; it stands in for generated
// client stubs.
func Invoke(ctx context.Context, connection grpc.ClientConnInterface, method string, request *structpb.Struct) (*structpb.Struct, error) {
	response := new(structpb.Struct)
	if err := connection.Invoke(ctx, fmt.Sprintf("/%s/%s", ServiceName, method), request, response); err != nil {
		return nil, err
	}
	return response, nil
}

// wholeNumber rejects values a seat count cannot hold: non-numbers,
// fractions, NaN, infinities and anything past int32.
func wholeNumber(value *structpb.Value) (int, error) {
	number, ok := value.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", reservas.ErrInvalidPartySize, fieldPartySize)
	}
	raw := number.NumberValue
	if math.IsNaN(raw) || math.IsInf(raw, 0) || raw != math.Trunc(raw) || math.Abs(raw) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s must be a whole number, got %v", reservas.ErrInvalidPartySize, fieldPartySize, raw)
	}
	return int(raw), nil
}

func mapToGRPCError(source error) error {
	if errors.Is(source, reservas.ErrInvalidSlot) {
		return status.Error(codes.InvalidArgument, errorInvalidSlot)
	}
	if errors.Is(source, reservas.ErrInvalidPartySize) {
		return status.Error(codes.InvalidArgument, errorInvalidPartySize)
	}
	switch reservas.KindOf(source) {
	case reservas.ErrorKindNotFound:
		return status.Error(codes.NotFound, errorNotFound)
	case reservas.ErrorKindForbidden:
		return status.Error(codes.PermissionDenied, errorForbidden)
	case reservas.ErrorKindPolicy:
		return status.Error(codes.FailedPrecondition, errorPolicy)
	case reservas.ErrorKindInvalid:
		return status.Error(codes.InvalidArgument, source.Error())
	}
	return status.Error(codes.Internal, source.Error())
}
