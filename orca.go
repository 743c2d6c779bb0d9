package orca

import (
	"context"
	"errors"
)

// AlgorithmFunc is the computation attached to a registered algorithm. The deps
// map carries the extracted results of every dependency declared for the
// algorithm, keyed by the dependency's full name (Name_Version). Returning an
// error marks the execution as an unhandled failure; the returned value is
// converted into a Result according to its dynamic type.
type AlgorithmFunc func(ctx context.Context, deps Dependencies) (any, error)

// Dependencies maps an algorithm's full name to the value its dependency
// produced. Values are already unwrapped from their Result variants: a float64
// for single values, a []float64 for float arrays, and a map[string]any for
// struct values.
type Dependencies map[string]any

// CoreAPI is the client-visible contract of the Orca Core service. It is
// implemented by CoreClient; processors accept any implementation so tests can
// substitute their own.
type CoreAPI interface {
	// RegisterProcessor announces a processor and its supported algorithms to
	// Orca Core. Returns error if the registration is rejected or the context
	// is cancelled.
	RegisterProcessor(ctx context.Context, reg ProcessorRegistration) (RegistrationAck, error)

	// EmitWindow submits a window to Orca Core, which may in turn trigger
	// algorithm executions on registered processors.
	EmitWindow(ctx context.Context, window Window) (EmitWindowAck, error)
}

// ProcessorService is the server-side contract a processor exposes to Orca
// Core. Processor implements it; it is exported so tests and alternative
// servers can register their own implementations on a gRPC server.
type ProcessorService interface {
	// ExecuteDagPart runs every algorithm named in the request and streams one
	// ExecutionResult per algorithm as it completes. Algorithm failures are
	// reported inside the streamed results; only transport or scheduling
	// failures abort the stream.
	ExecuteDagPart(req ExecutionRequest, stream ExecutionResultStream) error

	// HealthCheck reports the processor's serving status and live metrics.
	HealthCheck(ctx context.Context, req HealthCheckRequest) (HealthCheckResponse, error)
}

// ExecutionResultStream is the server-side send stream for ExecuteDagPart.
type ExecutionResultStream interface {
	// Context returns the context of the underlying stream. Cancelling it
	// cancels all in-flight algorithm executions for the request.
	Context() context.Context

	// Send transmits a single execution result to Orca Core.
	Send(res ExecutionResult) error
}

// ExecutionResultReceiver is the client-side receive stream for ExecuteDagPart.
type ExecutionResultReceiver interface {
	// Recv returns the next streamed result, or io.EOF once the server has
	// sent the result for every requested algorithm.
	Recv() (ExecutionResult, error)
}

// Sentinel errors returned by registration. Wrapped errors carry the offending
// name or version; match with errors.Is.
var (
	// ErrInvalidArgument reports an algorithm or window name that is not
	// PascalCase, or a version that is not bare major.minor.patch semver.
	ErrInvalidArgument = errors.New("invalid algorithm argument")

	// ErrInvalidDependency reports a dependency on a function that has not
	// been registered as an algorithm.
	ErrInvalidDependency = errors.New("invalid dependency")

	// ErrDuplicateAlgorithm reports a second registration under an already
	// taken name and version.
	ErrDuplicateAlgorithm = errors.New("algorithm already registered")

	// ErrDependencyCycle reports a dependency edge that would make the
	// algorithm graph cyclic.
	ErrDependencyCycle = errors.New("dependency cycle")
)
