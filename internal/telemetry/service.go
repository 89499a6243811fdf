// Package telemetry exposes a mounted ring's diagnostics over gRPC
// without protoc-generated stubs: a hand-built grpc.ServiceDesc plus a
// JSON codec, exactly the pattern the teacher's cmd/server/main.go uses
// to register TinySQLServer.
package telemetry

import (
	"context"
	"encoding/json"
	"sync"

	"google.golang.org/grpc"

	"nandring/internal/ring"
)

// JSONCodec is a gRPC wire codec that marshals requests/responses as
// JSON instead of protobuf, letting this service run without a .proto
// file or generated stubs.
type JSONCodec struct{}

func (JSONCodec) Name() string                      { return "json" }
func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// StatsRequest is empty; Stats reports on whatever ring the server wraps.
type StatsRequest struct{}

// StatsResponse mirrors ring.HealthReport over the wire.
type StatsResponse struct {
	TotalBlocks int `json:"total_blocks"`
	GoodBlocks  int `json:"good_blocks"`
	BadBlocks   int `json:"bad_blocks"`
	WastedPages int `json:"wasted_pages"`
	CurBlk      int `json:"cur_blk"`
	CurPage     int `json:"cur_page"`
}

// TotalGoodRequest is empty.
type TotalGoodRequest struct{}

// TotalGoodResponse carries the spec's total_good() result.
type TotalGoodResponse struct {
	Good int `json:"good"`
}

// ReadPageHeaderRequest names a single (block, page) to inspect.
type ReadPageHeaderRequest struct {
	Block int `json:"block"`
	Page  int `json:"page"`
}

// ReadPageHeaderResponse reports whether the page is wasted, and its
// header fields when it is not.
type ReadPageHeaderResponse struct {
	Wasted        bool   `json:"wasted"`
	ID            uint64 `json:"id,omitempty"`
	UTCCorrection uint32 `json:"utc_correction,omitempty"`
	TimeBootUS    uint64 `json:"time_boot_us,omitempty"`
	Error         string `json:"error,omitempty"`
}

// RingServer is the hand-rolled gRPC service interface, the counterpart
// to the teacher's TinySQLServer interface.
type RingServer interface {
	Stats(context.Context, *StatsRequest) (*StatsResponse, error)
	TotalGood(context.Context, *TotalGoodRequest) (*TotalGoodResponse, error)
	ReadPageHeader(context.Context, *ReadPageHeaderRequest) (*ReadPageHeaderResponse, error)
}

// RegisterRingServer installs srv's manual ServiceDesc on s, the same
// shape as the teacher's registerTinySQLServer.
func RegisterRingServer(s *grpc.Server, srv RingServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "nandring.Telemetry",
		HandlerType: (*RingServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Stats", Handler: statsHandler},
			{MethodName: "TotalGood", Handler: totalGoodHandler},
			{MethodName: "ReadPageHeader", Handler: readPageHeaderHandler},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "nandring/telemetry",
	}, srv)
}

func statsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StatsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RingServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/nandring.Telemetry/Stats"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RingServer).Stats(ctx, req.(*StatsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func totalGoodHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TotalGoodRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RingServer).TotalGood(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/nandring.Telemetry/TotalGood"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RingServer).TotalGood(ctx, req.(*TotalGoodRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func readPageHeaderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReadPageHeaderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RingServer).ReadPageHeader(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/nandring.Telemetry/ReadPageHeader"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RingServer).ReadPageHeader(ctx, req.(*ReadPageHeaderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Service implements RingServer over a single mounted ring, fronted by
// a mutex since many RPC calls share one ring instance — the ambient
// serialization the ring engine itself does not provide.
type Service struct {
	mu sync.Mutex
	r  *ring.Ring
}

// NewService wraps r for gRPC access.
func NewService(r *ring.Ring) *Service {
	return &Service{r: r}
}

func (s *Service) Stats(ctx context.Context, _ *StatsRequest) (*StatsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep, err := s.r.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsResponse{
		TotalBlocks: rep.TotalBlocks,
		GoodBlocks:  rep.GoodBlocks,
		BadBlocks:   rep.BadBlocks,
		WastedPages: rep.WastedPages,
		CurBlk:      int(rep.CurBlk),
		CurPage:     int(rep.CurPage),
	}, nil
}

func (s *Service) TotalGood(_ context.Context, _ *TotalGoodRequest) (*TotalGoodResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	good, err := s.r.TotalGood()
	if err != nil {
		return nil, err
	}
	return &TotalGoodResponse{Good: good}, nil
}

func (s *Service) ReadPageHeader(ctx context.Context, req *ReadPageHeaderRequest) (*ReadPageHeaderResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, res, err := s.r.ReadPageHeaderRaw(ctx, req.Block, req.Page)
	if err != nil {
		return &ReadPageHeaderResponse{Error: err.Error()}, nil
	}
	if res.Wasted() {
		return &ReadPageHeaderResponse{Wasted: true}, nil
	}
	id, _ := res.Valid()
	return &ReadPageHeaderResponse{
		Wasted:        false,
		ID:            uint64(id),
		UTCCorrection: h.UTCCorrection,
		TimeBootUS:    h.TimeBootUS,
	}, nil
}
