package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/home-security/internal/service/status"
)

// fakeService records the last call and answers with canned values.
type fakeService struct {
	actor   string
	command string
	reply   Reply
	err     error
	status  status.Message
}

func (f *fakeService) Execute(_ context.Context, actor, command string) (Reply, error) {
	f.actor = actor
	f.command = command

	return f.reply, f.err
}

func (f *fakeService) Status(context.Context) status.Message {
	return f.status
}

// dialFake serves the fake over an in-memory listener.
func dialFake(t *testing.T, service Service) *Client {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	Register(server, NewServer(service))

	go func() {
		_ = server.Serve(listener)
	}()

	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	return NewClient(conn)
}

// TestExecute_Roundtrip carries the actor and decodes the reply.
func TestExecute_Roundtrip(t *testing.T) {
	t.Parallel()

	count := int64(3)
	service := &fakeService{
		reply: Reply{
			Command:  "archive_logs",
			Accepted: true,
			Count:    &count,
		},
	}

	client := dialFake(t, service)
	ctx := WithActor(context.Background(), "o.shokin@watchtower")

	out, err := client.Execute(ctx, wrapperspb.String("  archive_logs before=2024-01-01 "))
	require.NoError(t, err)

	reply, err := DecodeReply(out)
	require.NoError(t, err)
	require.Equal(t, service.reply, reply)
	require.Equal(t, "o.shokin@watchtower", service.actor)
	require.Equal(t, "archive_logs before=2024-01-01", service.command)
}

// TestExecute_Validation rejects empty commands and anonymous callers.
func TestExecute_Validation(t *testing.T) {
	t.Parallel()

	client := dialFake(t, new(fakeService))

	_, err := client.Execute(WithActor(context.Background(), "a@b"), wrapperspb.String(" "))
	require.Equal(t, codes.InvalidArgument, grpcstatus.Code(err))

	_, err = client.Execute(context.Background(), wrapperspb.String("get_status"))
	require.Equal(t, codes.InvalidArgument, grpcstatus.Code(err))
}

// TestExecute_ServiceErrors keeps deadline and cancellation apart from unavailability.
func TestExecute_ServiceErrors(t *testing.T) {
	t.Parallel()

	cases := map[codes.Code]error{
		codes.DeadlineExceeded: fmt.Errorf("wait for outcome: %w", context.DeadlineExceeded),
		codes.Canceled:         context.Canceled,
		codes.Unavailable:      errors.New("controller stopped"),
	}

	for want, serviceErr := range cases {
		client := dialFake(t, &fakeService{err: serviceErr})

		_, err := client.Execute(WithActor(context.Background(), "a@b"), wrapperspb.String("reset_system"))
		require.Equal(t, want, grpcstatus.Code(err), serviceErr.Error())
	}
}

// TestGetStatus returns the status message fields.
func TestGetStatus(t *testing.T) {
	t.Parallel()

	count := int64(12)
	client := dialFake(t, &fakeService{
		status: status.Message{
			AlarmActive:   true,
			Frequency:     2,
			Duration:      500,
			FlashFreq:     1,
			FlashDuration: 1,
			LogCount:      &count,
		},
	})

	out, err := client.GetStatus(context.Background(), new(emptypb.Empty))
	require.NoError(t, err)

	m, err := status.FromStruct(out)
	require.NoError(t, err)
	require.True(t, m.AlarmActive)
	require.Equal(t, 2, m.Frequency)
	require.Equal(t, int64(12), *m.LogCount)
	require.Nil(t, m.ArchiveCount)
}
