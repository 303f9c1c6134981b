package control

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls a remote Server over the package's JSON-coded gRPC
// service, used by an agent to reach the cluster leader and by the CLI
// to reach a local or remote control endpoint.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a control server at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("control: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Configure(ctx context.Context, req *ConfigureRequest) (*ConfigureResponse, error) {
	resp := new(ConfigureResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Configure", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Heartbeat(ctx context.Context, req *HeartbeatRequest) (*HeartbeatResponse, error) {
	resp := new(HeartbeatResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Heartbeat", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Join(ctx context.Context, req *JoinRequest) (*JoinResponse, error) {
	resp := new(JoinResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Join", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Leave(ctx context.Context, req *LeaveRequest) (*LeaveResponse, error) {
	resp := new(LeaveResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Leave", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Status(ctx context.Context, req *StatusRequest) (*StatusResponse, error) {
	resp := new(StatusResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Status", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
