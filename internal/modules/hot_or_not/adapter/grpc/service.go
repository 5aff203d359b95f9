package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	participantServiceName = "hotornot.ParticipantService"
	orchestratorName       = "hotornot.Orchestrator"

	MethodReceiveBetWinnings     = "/" + participantServiceName + "/ReceiveBetWinnings"
	MethodGetUtilityTokenBalance = "/" + participantServiceName + "/GetUtilityTokenBalance"
	MethodTabulateSlot           = "/" + participantServiceName + "/TabulateSlot"
	MethodInformParticipants     = "/" + participantServiceName + "/InformParticipants"
	MethodRequestCycles          = "/" + orchestratorName + "/RequestCycles"
)

// ParticipantServiceServer is served by every instance.
type ParticipantServiceServer interface {
	ReceiveBetWinnings(ctx context.Context, req *ReceiveBetWinningsReq) (*Empty, error)
	GetUtilityTokenBalance(ctx context.Context, req *Empty) (*TokenBalanceResp, error)
	TabulateSlot(ctx context.Context, req *SlotReq) (*NotifySummaryResp, error)
	InformParticipants(ctx context.Context, req *SlotReq) (*NotifySummaryResp, error)
}

// OrchestratorServer is the resource allocator's side of RequestCycles.
type OrchestratorServer interface {
	RequestCycles(ctx context.Context, req *RequestCyclesReq) (*Empty, error)
}

func RegisterParticipantServiceServer(s grpc.ServiceRegistrar, srv ParticipantServiceServer) {
	s.RegisterService(&ParticipantServiceDesc, srv)
}

func RegisterOrchestratorServer(s grpc.ServiceRegistrar, srv OrchestratorServer) {
	s.RegisterService(&OrchestratorDesc, srv)
}

// unary builds a method handler that decodes into a fresh Req and calls
// call on the registered server.
func unary[S any, Req any, Resp any](fullMethod string, call func(S, context.Context, *Req) (*Resp, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(S), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(S), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ParticipantServiceDesc = grpc.ServiceDesc{
	ServiceName: participantServiceName,
	HandlerType: (*ParticipantServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ReceiveBetWinnings",
			Handler:    unary(MethodReceiveBetWinnings, ParticipantServiceServer.ReceiveBetWinnings),
		},
		{
			MethodName: "GetUtilityTokenBalance",
			Handler:    unary(MethodGetUtilityTokenBalance, ParticipantServiceServer.GetUtilityTokenBalance),
		},
		{
			MethodName: "TabulateSlot",
			Handler:    unary(MethodTabulateSlot, ParticipantServiceServer.TabulateSlot),
		},
		{
			MethodName: "InformParticipants",
			Handler:    unary(MethodInformParticipants, ParticipantServiceServer.InformParticipants),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hot_or_not",
}

var OrchestratorDesc = grpc.ServiceDesc{
	ServiceName: orchestratorName,
	HandlerType: (*OrchestratorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RequestCycles",
			Handler:    unary(MethodRequestCycles, OrchestratorServer.RequestCycles),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hot_or_not",
}
