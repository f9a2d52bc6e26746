// Package rpc exposes the dashboard over gRPC. Messages are
// google.protobuf.Struct values carrying the same JSON shapes the HTTP API
// uses, so no generated code is needed.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"qqqdash/internal/cache"
	"qqqdash/internal/dashboard"
	"qqqdash/internal/domain"
	"qqqdash/internal/watchlist"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "qqqdash.v1.Dashboard"

const (
	methodGetView         = "/" + ServiceName + "/GetView"
	methodToggleWatchlist = "/" + ServiceName + "/ToggleWatchlist"
)

// DashboardServer is the server API for the Dashboard service.
type DashboardServer interface {
	GetView(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ToggleWatchlist(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DashboardServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetView", Handler: getViewHandler},
		{MethodName: "ToggleWatchlist", Handler: toggleWatchlistHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "qqqdash/v1/dashboard.proto",
}

// RegisterDashboardServer registers srv on gs.
func RegisterDashboardServer(gs grpc.ServiceRegistrar, srv DashboardServer) {
	gs.RegisterService(&serviceDesc, srv)
}

func getViewHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DashboardServer).GetView(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetView}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DashboardServer).GetView(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func toggleWatchlistHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DashboardServer).ToggleWatchlist(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodToggleWatchlist}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DashboardServer).ToggleWatchlist(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Row is one table row with its watchlist flag.
type Row struct {
	domain.StockRecord
	Watched bool `json:"watched"`
}

// View is the GetView response.
type View struct {
	Rows       []Row              `json:"rows"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	TotalPages int                `json:"totalPages"`
	State      domain.ViewState   `json:"state"`
	Metrics    *dashboard.Metrics `json:"metrics,omitempty"`
	FetchedAt  time.Time          `json:"fetchedAt"`
	Source     string             `json:"source"`
}

// Toggle is the ToggleWatchlist request and response.
type Toggle struct {
	Symbol  string `json:"symbol"`
	Watched bool   `json:"watched"`
}

// Service implements DashboardServer on top of the loader and watchlist.
type Service struct {
	loader    *cache.Loader
	watchlist *watchlist.Store
	log       *slog.Logger
}

var _ DashboardServer = (*Service)(nil)

// NewService creates a Service.
func NewService(loader *cache.Loader, wl *watchlist.Store, log *slog.Logger) *Service {
	return &Service{loader: loader, watchlist: wl, log: log}
}

// RegisterGRPC registers the service on gs.
func (s *Service) RegisterGRPC(gs *grpc.Server) {
	RegisterDashboardServer(gs, s)
}

// GetView resolves a table page for the requested view state.
func (s *Service) GetView(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	st := domain.DefaultViewState()
	if err := fromStruct(req, &st); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decoding view state: %v", err)
	}

	snap, src, err := s.loader.Load(ctx)
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}

	wl := s.watchlist.Set()
	b := dashboard.BuildBoard(snap, wl, st)
	v := View{
		Rows:       make([]Row, len(b.Page.Rows)),
		Total:      b.Page.Total,
		Page:       b.Page.Page,
		TotalPages: b.Page.TotalPages,
		State:      b.Page.State,
		Metrics:    b.Metrics,
		FetchedAt:  b.FetchedAt,
		Source:     string(src),
	}
	for i, r := range b.Page.Rows {
		v.Rows[i] = Row{StockRecord: r, Watched: wl.Contains(r.Symbol)}
	}
	return toStruct(v)
}

// ToggleWatchlist flips membership of the requested symbol.
func (s *Service) ToggleWatchlist(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var t Toggle
	if err := fromStruct(req, &t); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decoding request: %v", err)
	}
	sym := domain.NormalizeSymbol(t.Symbol)
	watched, err := s.watchlist.Toggle(ctx, sym)
	if err != nil {
		if errors.Is(err, watchlist.ErrEmptySymbol) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		s.log.Error("toggling watchlist over rpc", "symbol", sym, "error", err)
		return nil, status.Error(codes.Internal, "failed to update watchlist")
	}
	return toStruct(Toggle{Symbol: sym, Watched: watched})
}

// toStruct converts v to a Struct through its JSON encoding.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes s into v through its JSON encoding. A nil s leaves v
// untouched.
func fromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
