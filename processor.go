package orca

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// defaultMaxMessageSize caps gRPC messages in both directions. Struct results
// can get large, so the cap sits well above gRPC's 4MiB default.
const defaultMaxMessageSize = 50 * 1024 * 1024

// defaultMaxWorkers bounds concurrent algorithm executions per request.
const defaultMaxWorkers = 10

// Processor hosts registered algorithms and serves them to Orca Core over
// gRPC. Create one with NewProcessor, attach algorithms with Algorithm,
// announce it with Register, then block in Serve.
type Processor struct {
	id            string
	name          string
	runtime       string
	coreAddr      string
	listenAddr    string
	advertiseAddr string
	maxMsgSize    int
	maxWorkers    int
	logger        *slog.Logger
	clock         func() time.Time

	registry *registry
	metrics  *processorMetrics
	core     CoreAPI

	startedAt   time.Time
	activeTasks atomic.Int64

	mu         sync.Mutex
	grpcServer *grpc.Server
}

// ProcessorOption configures a Processor at construction.
type ProcessorOption func(*Processor)

// WithLogger sets the logger the processor logs with. Defaults to
// slog.Default.
func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithMaxWorkers bounds how many algorithms one execution request may run
// concurrently. Defaults to 10.
func WithMaxWorkers(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.maxWorkers = n
		}
	}
}

// WithMaxMessageSize caps gRPC send and receive message sizes in bytes.
// Defaults to 50MiB.
func WithMaxMessageSize(bytes int) ProcessorOption {
	return func(p *Processor) {
		if bytes > 0 {
			p.maxMsgSize = bytes
		}
	}
}

// WithListenAddress sets the address the processor binds. Defaults to
// 0.0.0.0 on the port from ORCA_PORT.
func WithListenAddress(addr string) ProcessorOption {
	return func(p *Processor) {
		p.listenAddr = addr
	}
}

// WithAdvertiseAddress sets the host:port the processor reports to Orca Core,
// which dials back on it. Defaults to ORCA_HOST:ORCA_PORT.
func WithAdvertiseAddress(addr string) ProcessorOption {
	return func(p *Processor) {
		p.advertiseAddr = addr
	}
}

// WithCoreAddress sets the Orca Core address Register dials. Defaults to
// ORCA_SERVER.
func WithCoreAddress(addr string) ProcessorOption {
	return func(p *Processor) {
		p.coreAddr = addr
	}
}

// WithCore injects the core client Register uses instead of dialing one.
func WithCore(core CoreAPI) ProcessorOption {
	return func(p *Processor) {
		p.core = core
	}
}

// WithClock overrides the time source used for result timestamps and uptime.
func WithClock(clock func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithRuntime overrides the runtime string reported to Orca Core. Defaults to
// the Go runtime version.
func WithRuntime(rt string) ProcessorOption {
	return func(p *Processor) {
		if rt != "" {
			p.runtime = rt
		}
	}
}

// NewProcessor creates a processor with the given name. The name must be
// PascalCase; it identifies the processor to Orca Core and labels its metrics.
func NewProcessor(name string, options ...ProcessorOption) (*Processor, error) {
	if err := ValidateAlgorithmName(name); err != nil {
		return nil, fmt.Errorf("%w: processor name %q must be PascalCase", ErrInvalidArgument, name)
	}

	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	p := &Processor{
		id:            uuid.New().String(),
		name:          name,
		runtime:       runtime.Version(),
		coreAddr:      cfg.CoreAddress,
		listenAddr:    cfg.ListenAddress(),
		advertiseAddr: cfg.AdvertiseAddress(),
		maxMsgSize:    defaultMaxMessageSize,
		maxWorkers:    defaultMaxWorkers,
		logger:        slog.Default(),
		clock:         time.Now,
		registry:      newRegistry(),
	}
	for _, opt := range options {
		opt(p)
	}
	p.logger = p.logger.With(
		slog.String("package", "orca"),
		slog.String("processorName", name),
	)
	p.metrics = newProcessorMetrics(name)
	p.startedAt = p.clock()
	return p, nil
}

// algorithmOptions accumulates per-algorithm registration options.
type algorithmOptions struct {
	dependsOn []AlgorithmFunc
}

// AlgorithmOption configures a single algorithm registration.
type AlgorithmOption func(*algorithmOptions)

// WithDependsOn declares dependencies by their functions. Each function must
// already be registered as an algorithm on the same processor; its result is
// delivered to the dependent under the dependency's full name.
func WithDependsOn(fns ...AlgorithmFunc) AlgorithmOption {
	return func(o *algorithmOptions) {
		o.dependsOn = append(o.dependsOn, fns...)
	}
}

// Algorithm registers fn as an algorithm triggered by the given window type.
// Name and window name must be PascalCase; versions must be bare
// major.minor.patch semver. Registering the same name and version twice fails
// with ErrDuplicateAlgorithm.
func (p *Processor) Algorithm(name, version, windowName, windowVersion string, fn AlgorithmFunc, options ...AlgorithmOption) error {
	var opts algorithmOptions
	for _, opt := range options {
		opt(&opts)
	}

	spec := AlgorithmSpec{
		Name:    name,
		Version: version,
		WindowType: WindowType{
			Name:    windowName,
			Version: windowVersion,
		},
	}

	// Resolve dependencies up front so a bad edge leaves nothing registered.
	refs := make([]DependencyRef, 0, len(opts.dependsOn))
	for _, dep := range opts.dependsOn {
		depFullName, ok := p.registry.lookupFn(dep)
		if !ok {
			return fmt.Errorf("%w: dependency of %s is not a registered algorithm function",
				ErrInvalidDependency, spec.FullName())
		}
		depAlg, _ := p.registry.lookup(depFullName)
		refs = append(refs, DependencyRef{
			Name:             depAlg.spec.Name,
			Version:          depAlg.spec.Version,
			ProcessorName:    p.name,
			ProcessorRuntime: p.runtime,
		})
	}

	if err := p.registry.register(spec, fn); err != nil {
		return err
	}
	for _, ref := range refs {
		if err := p.registry.addDependency(spec.FullName(), ref.Name+"_"+ref.Version, ref); err != nil {
			return err
		}
	}

	p.logger.Debug("Registered algorithm",
		slog.String("algorithm", spec.FullName()),
		slog.String("windowType", spec.WindowType.FullName()),
		slog.Int("dependencies", len(refs)))
	return nil
}

// LinkDependency adds a dependency edge between two already registered
// algorithm functions. Edges that would make the graph cyclic fail with
// ErrDependencyCycle.
func (p *Processor) LinkDependency(fn, dependsOn AlgorithmFunc) error {
	fullName, ok := p.registry.lookupFn(fn)
	if !ok {
		return fmt.Errorf("%w: function is not a registered algorithm", ErrInvalidDependency)
	}
	depFullName, ok := p.registry.lookupFn(dependsOn)
	if !ok {
		return fmt.Errorf("%w: dependency of %s is not a registered algorithm function",
			ErrInvalidDependency, fullName)
	}
	depAlg, _ := p.registry.lookup(depFullName)
	ref := DependencyRef{
		Name:             depAlg.spec.Name,
		Version:          depAlg.spec.Version,
		ProcessorName:    p.name,
		ProcessorRuntime: p.runtime,
	}
	return p.registry.addDependency(fullName, depFullName, ref)
}

// Algorithms iterates the registered algorithm specs in full-name order.
func (p *Processor) Algorithms() iter.Seq[AlgorithmSpec] {
	return p.registry.all()
}

// AlgorithmsForWindow returns the specs of the algorithms triggered by the
// given window type, in registration order.
func (p *Processor) AlgorithmsForWindow(window WindowType) []AlgorithmSpec {
	return p.registry.forWindow(window)
}

// Name returns the processor's name.
func (p *Processor) Name() string { return p.name }

// Registration builds the announcement Register sends to Orca Core.
func (p *Processor) Registration() ProcessorRegistration {
	return ProcessorRegistration{
		Name:                p.name,
		Runtime:             p.runtime,
		ConnectionStr:       p.advertiseAddr,
		SupportedAlgorithms: p.registry.specs(),
	}
}

// Register announces the processor and its algorithms to Orca Core. Without
// an injected core client it dials the configured core address first.
func (p *Processor) Register(ctx context.Context) error {
	if p.core == nil {
		core, err := NewCoreClient(p.coreAddr, WithCoreClientLogger(p.logger))
		if err != nil {
			return err
		}
		p.core = core
	}

	ack, err := p.core.RegisterProcessor(ctx, p.Registration())
	if err != nil {
		return err
	}
	if !ack.Accepted {
		return fmt.Errorf("core rejected registration of %s: %s", p.name, ack.Message)
	}
	p.logger.Info("Processor registered with core",
		slog.String("coreAddress", p.coreAddr),
		slog.Int("algorithms", p.registry.len()))
	return nil
}

// Serve listens on the configured address and serves execution requests until
// ctx is cancelled. In-flight executions finish before Serve returns.
func (p *Processor) Serve(ctx context.Context) error {
	lis, err := net.Listen("tcp", p.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", p.listenAddr, err)
	}
	return p.ServeListener(ctx, lis)
}

// ServeListener serves execution requests on lis until ctx is cancelled.
// Tests use it with in-memory listeners.
func (p *Processor) ServeListener(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.MaxRecvMsgSize(p.maxMsgSize),
		grpc.MaxSendMsgSize(p.maxMsgSize),
	)
	RegisterProcessorServer(srv, p)

	p.mu.Lock()
	p.grpcServer = srv
	p.mu.Unlock()

	serveDone := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down processor")
			srv.GracefulStop()
		case <-serveDone:
		}
	}()

	p.logger.Info("Processor serving",
		slog.String("listenAddress", lis.Addr().String()),
		slog.Int("algorithms", p.registry.len()))

	err := srv.Serve(lis)
	close(serveDone)
	<-stopped

	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("processor server failed: %w", err)
	}
	return nil
}

// Shutdown stops the processor explicitly. In-flight executions drain until
// ctx expires, after which the server is stopped hard. No-op when the
// processor is not serving.
func (p *Processor) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	srv := p.grpcServer
	p.mu.Unlock()
	if srv == nil {
		return nil
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		srv.GracefulStop()
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		srv.Stop()
		return ctx.Err()
	}
}

// ExecuteDagPart runs every algorithm in the request, bounded by the worker
// limit, and streams one result per algorithm as it completes. Results arrive
// in completion order, not request order.
func (p *Processor) ExecuteDagPart(req ExecutionRequest, stream ExecutionResultStream) error {
	ctx := stream.Context()
	execID := req.ExecID
	if execID == "" {
		execID = uuid.New().String()
	}

	p.logger.Debug("Executing DAG part",
		slog.String("execId", execID),
		slog.Int("algorithms", len(req.Algorithms)))

	// Upstream results delivered with the request, keyed by full name and
	// unwrapped to their plain values.
	upstream := make(map[string]any, len(req.AlgorithmResults))
	for _, ar := range req.AlgorithmResults {
		upstream[ar.Algorithm.FullName()] = ar.Result.Value()
	}

	results := make(chan ExecutionResult, len(req.Algorithms))

	var sendErr error
	var senderWG sync.WaitGroup
	senderWG.Add(1)
	go func() {
		defer senderWG.Done()
		for res := range results {
			if sendErr != nil {
				continue
			}
			if err := stream.Send(res); err != nil {
				sendErr = err
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxWorkers)
	for _, spec := range req.Algorithms {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result := p.executeAlgorithm(gctx, spec, upstream)
			results <- ExecutionResult{
				ExecID: execID,
				AlgorithmResult: AlgorithmResult{
					Algorithm: spec,
					Result:    result,
				},
			}
			return nil
		})
	}

	err := g.Wait()
	close(results)
	senderWG.Wait()

	if err != nil {
		return status.Errorf(codes.Internal, "dag part execution failed: %v", err)
	}
	return sendErr
}

// executeAlgorithm runs one algorithm and converts its outcome into a Result.
// Panics and returned errors become unhandled failures carrying the error and,
// for panics, the stack trace.
func (p *Processor) executeAlgorithm(ctx context.Context, spec AlgorithmSpec, upstream map[string]any) (result Result) {
	start := p.clock()
	p.activeTasks.Add(1)
	p.metrics.active.Inc()
	defer func() {
		p.activeTasks.Add(-1)
		p.metrics.active.Dec()
		p.metrics.observe(result.Status, p.clock().Sub(start))
	}()

	alg, ok := p.registry.lookup(spec.FullName())
	if !ok {
		p.logger.Warn("Requested algorithm is not registered",
			slog.String("algorithm", spec.FullName()))
		return failureResult(
			fmt.Errorf("algorithm %s is not registered on processor %s", spec.FullName(), p.name),
			"", start.Unix())
	}

	deps := make(Dependencies, len(alg.spec.Dependencies))
	for _, ref := range alg.spec.Dependencies {
		depFullName := ref.Name + "_" + ref.Version
		if v, ok := upstream[depFullName]; ok {
			deps[depFullName] = v
		}
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Algorithm panicked",
				slog.String("algorithm", spec.FullName()),
				slog.Any("panic", r))
			result = failureResult(fmt.Errorf("panic: %v", r), string(debug.Stack()), p.clock().Unix())
		}
	}()

	value, err := alg.fn(ctx, deps)
	ts := p.clock().Unix()
	if err != nil {
		p.logger.Warn("Algorithm failed",
			slog.String("algorithm", spec.FullName()),
			slog.String("err", err.Error()))
		return failureResult(err, "", ts)
	}
	return NewResult(value, ts)
}

// HealthCheck reports the processor's serving status and live metrics.
func (p *Processor) HealthCheck(_ context.Context, _ HealthCheckRequest) (HealthCheckResponse, error) {
	return HealthCheckResponse{
		Status:  HealthStatusServing,
		Metrics: p.liveMetrics(),
	}, nil
}
