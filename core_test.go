package orca_test

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	orca "github.com/orcalabs/orca-go"
)

// fakeCoreService implements orca.CoreService, recording what it is sent.
type fakeCoreService struct {
	registrations []orca.ProcessorRegistration
	windows       []orca.Window
}

func (f *fakeCoreService) RegisterProcessor(_ context.Context, reg orca.ProcessorRegistration) (orca.RegistrationAck, error) {
	f.registrations = append(f.registrations, reg)
	return orca.RegistrationAck{Accepted: true, Message: "registered"}, nil
}

func (f *fakeCoreService) EmitWindow(_ context.Context, window orca.Window) (orca.EmitWindowAck, error) {
	f.windows = append(f.windows, window)
	return orca.EmitWindowAck{Accepted: true}, nil
}

// startCore serves a fake core over an in-memory transport and returns a
// CoreClient connected to it.
func startCore(t *testing.T) (*fakeCoreService, *orca.CoreClient) {
	t.Helper()

	fake := &fakeCoreService{}
	srv := grpc.NewServer()
	orca.RegisterCoreServer(srv, fake)

	lis := bufconn.Listen(1024 * 1024)
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	client, err := orca.NewCoreClient("passthrough:///bufnet",
		orca.WithCoreClientDialOptions(
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		),
	)
	if err != nil {
		t.Fatalf("NewCoreClient() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return fake, client
}

func TestCoreClient_RegisterProcessor(t *testing.T) {
	fake, client := startCore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ack, err := client.RegisterProcessor(ctx, orca.ProcessorRegistration{
		Name:          "TestProc",
		Runtime:       "go",
		ConnectionStr: "127.0.0.1:50052",
		SupportedAlgorithms: []orca.AlgorithmSpec{
			{
				Name:       "DataLoader",
				Version:    "1.0.0",
				WindowType: orca.WindowType{Name: "WindowA", Version: "1.0.0"},
			},
		},
	})
	if err != nil {
		t.Fatalf("RegisterProcessor() error = %v", err)
	}
	if !ack.Accepted {
		t.Error("RegisterProcessor() not accepted")
	}

	if len(fake.registrations) != 1 {
		t.Fatalf("core received %d registrations, want 1", len(fake.registrations))
	}
	got := fake.registrations[0]
	if got.Name != "TestProc" {
		t.Errorf("registration name = %q, want TestProc", got.Name)
	}
	if len(got.SupportedAlgorithms) != 1 || got.SupportedAlgorithms[0].FullName() != "DataLoader_1.0.0" {
		t.Errorf("registration algorithms = %+v", got.SupportedAlgorithms)
	}
}

func TestCoreClient_EmitWindow(t *testing.T) {
	fake, client := startCore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ack, err := client.EmitWindow(ctx, orca.Window{
		TimeFrom:          100,
		TimeTo:            200,
		WindowTypeName:    "WindowA",
		WindowTypeVersion: "1.0.0",
		Origin:            "test",
	})
	if err != nil {
		t.Fatalf("EmitWindow() error = %v", err)
	}
	if !ack.Accepted {
		t.Error("EmitWindow() not accepted")
	}
	if len(fake.windows) != 1 {
		t.Fatalf("core received %d windows, want 1", len(fake.windows))
	}
	if fake.windows[0].Origin != "test" {
		t.Errorf("window origin = %q, want test", fake.windows[0].Origin)
	}
}

func TestCoreClient_EmitWindow_Invalid(t *testing.T) {
	fake, client := startCore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.EmitWindow(ctx, orca.Window{
		TimeFrom:          200,
		TimeTo:            100,
		WindowTypeName:    "WindowA",
		WindowTypeVersion: "1.0.0",
	})
	if err == nil {
		t.Fatal("EmitWindow() error = nil, want validation error")
	}
	if len(fake.windows) != 0 {
		t.Error("invalid window reached the core")
	}
}
