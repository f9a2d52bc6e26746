package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"qqqdash/internal/domain"
)

// Client calls the Dashboard service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for the server at addr.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// GetView fetches the page for st.
func (c *Client) GetView(ctx context.Context, st domain.ViewState) (View, error) {
	req, err := toStruct(st)
	if err != nil {
		return View{}, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodGetView, req, out); err != nil {
		return View{}, err
	}
	var v View
	if err := fromStruct(out, &v); err != nil {
		return View{}, fmt.Errorf("decoding view: %w", err)
	}
	return v, nil
}

// ToggleWatchlist flips symbol and reports whether it is now watched.
func (c *Client) ToggleWatchlist(ctx context.Context, symbol string) (bool, error) {
	req, err := toStruct(Toggle{Symbol: symbol})
	if err != nil {
		return false, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodToggleWatchlist, req, out); err != nil {
		return false, err
	}
	var t Toggle
	if err := fromStruct(out, &t); err != nil {
		return false, fmt.Errorf("decoding toggle: %w", err)
	}
	return t.Watched, nil
}
