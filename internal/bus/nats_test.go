package bus_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/tutoralloc/allocator/internal/bus"
	"github.com/tutoralloc/allocator/internal/model"

	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

func TestNewPublisher_NoServer(t *testing.T) {
	t.Parallel()
	// port 1 is reserved, the connection is refused immediately
	_, err := bus.NewPublisher("nats://127.0.0.1:1", "allocator.outcomes")
	require.Error(t, err)
}

func TestPublisherUpload(t *testing.T) {
	t.Parallel()
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	srv := natsserver.RunServer(&opts)
	t.Cleanup(srv.Shutdown)

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	msgs := make(chan *nats.Msg, 2)
	sub, err := nc.ChanSubscribe(model.DefaultNATSSubject, msgs)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sub.Unsubscribe()
	})
	require.NoError(t, nc.Flush())

	publisher, err := bus.NewPublisher(srv.ClientURL(), model.DefaultNATSSubject)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, publisher.Close())
	})

	succeeded := model.Succeeded("job-1", json.RawMessage(`{"success":true,"data":{"tutor":"Ann"}}`))
	failed := model.Failed("job-2", "bad input", model.ErrWorkerFailure)
	require.NoError(t, publisher.Upload(t.Context(), succeeded))
	require.NoError(t, publisher.Upload(t.Context(), failed))

	var testCases = []struct {
		id      string
		status  string
		payload string
		message string
	}{
		{"job-1", "succeeded", `{"success":true,"data":{"tutor":"Ann"}}`, ""},
		{"job-2", "failed", "", "bad input"},
	}
	for _, tt := range testCases {
		select {
		case msg := <-msgs:
			require.Equal(t, model.DefaultNATSSubject, msg.Subject)
			require.Equal(t, tt.id, msg.Header.Get("Allocator-Job-Id"))
			require.Equal(t, tt.status, msg.Header.Get("Allocator-Status"))

			var got model.Outcome
			require.NoError(t, json.Unmarshal(msg.Data, &got))
			require.Equal(t, tt.id, got.JobID)
			require.Equal(t, tt.status, got.Status.String())
			require.Equal(t, tt.message, got.Message)
			if tt.payload != "" {
				require.JSONEq(t, tt.payload, string(got.Payload))
			} else {
				require.Empty(t, got.Payload)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("outcome of %s not received", tt.id)
		}
	}
}
