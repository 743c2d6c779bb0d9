package orca

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// CoreClient talks to the Orca Core service. It implements CoreAPI.
type CoreClient struct {
	cc     *grpc.ClientConn
	logger *slog.Logger

	dialOptions []grpc.DialOption
}

// CoreClientOption configures a CoreClient.
type CoreClientOption func(*CoreClient)

// WithCoreClientLogger sets the logger the client logs with. Defaults to
// slog.Default.
func WithCoreClientLogger(logger *slog.Logger) CoreClientOption {
	return func(c *CoreClient) {
		c.logger = logger
	}
}

// WithCoreClientDialOptions appends extra gRPC dial options, for in-memory
// transports in tests.
func WithCoreClientDialOptions(opts ...grpc.DialOption) CoreClientOption {
	return func(c *CoreClient) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

// NewCoreClient dials the Orca Core service at addr. The connection uses the
// json content subtype and insecure transport credentials; Orca deployments
// run core and processors on a private network.
func NewCoreClient(addr string, options ...CoreClientOption) (*CoreClient, error) {
	c := &CoreClient{
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("package", "orca"))

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, c.dialOptions...)

	cc, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial core at %s: %w", addr, err)
	}
	c.cc = cc
	return c, nil
}

// RegisterProcessor announces a processor to Orca Core.
func (c *CoreClient) RegisterProcessor(ctx context.Context, reg ProcessorRegistration) (RegistrationAck, error) {
	out := new(RegistrationAck)
	if err := c.cc.Invoke(ctx, methodCoreRegisterProcessor, &reg, out); err != nil {
		return RegistrationAck{}, fmt.Errorf("failed to register processor %s: %w", reg.Name, err)
	}
	c.logger.Debug("Registered processor with core",
		slog.String("processorName", reg.Name),
		slog.Bool("accepted", out.Accepted))
	return *out, nil
}

// EmitWindow submits a window to Orca Core.
func (c *CoreClient) EmitWindow(ctx context.Context, window Window) (EmitWindowAck, error) {
	if err := window.Validate(); err != nil {
		return EmitWindowAck{}, err
	}
	out := new(EmitWindowAck)
	if err := c.cc.Invoke(ctx, methodCoreEmitWindow, &window, out); err != nil {
		return EmitWindowAck{}, fmt.Errorf("failed to emit window %s: %w", window.WindowTypeName, err)
	}
	c.logger.Debug("Emitted window",
		slog.String("windowTypeName", window.WindowTypeName),
		slog.Int64("timeFrom", window.TimeFrom),
		slog.Int64("timeTo", window.TimeTo))
	return *out, nil
}

// Close tears down the underlying connection.
func (c *CoreClient) Close() error {
	return c.cc.Close()
}

// EmitWindow is a convenience for host programs that just want to push a
// window: it dials Orca Core at the address from the environment, emits the
// window, and closes the connection.
func EmitWindow(ctx context.Context, window Window) (EmitWindowAck, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return EmitWindowAck{}, err
	}
	client, err := NewCoreClient(cfg.CoreAddress)
	if err != nil {
		return EmitWindowAck{}, err
	}
	defer client.Close()
	return client.EmitWindow(ctx, window)
}
