package testutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/meridian/types"
)

// NATSServer is an embedded NATS server with JetStream enabled.
type NATSServer struct {
	// URL is the client URL of the server.
	URL string

	// JetStream is a JetStream context on a connection owned by the server helper.
	JetStream jetstream.JetStream
}

// StartNATS starts an embedded NATS server for topology feed tests.
//
// The server listens on a random local port and stores JetStream data in
// t.TempDir(). The server and its connection are shut down when the test
// completes.
//
// Parameters:
//   - t: The testing context
//
// Returns:
//   - *NATSServer: The running server
func StartNATS(t *testing.T) *NATSServer {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	require.NoError(t, err, "failed to create NATS server")

	ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("NATS server not ready for connections")
	}

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err, "failed to connect to NATS server")

	t.Cleanup(func() {
		nc.Close()
		ns.Shutdown()
	})

	js, err := jetstream.New(nc)
	require.NoError(t, err, "failed to create JetStream context")

	return &NATSServer{URL: ns.ClientURL(), JetStream: js}
}

// CreateKV creates a KV bucket on the embedded server.
//
// Parameters:
//   - t: The testing context
//   - bucket: The name of the KV bucket
//
// Returns:
//   - jetstream.KeyValue: The created bucket
func (s *NATSServer) CreateKV(t *testing.T, bucket string) jetstream.KeyValue {
	t.Helper()

	kv, err := s.JetStream.CreateKeyValue(t.Context(), jetstream.KeyValueConfig{
		Bucket:  bucket,
		History: 5,
	})
	require.NoError(t, err, "failed to create KV bucket")

	return kv
}

// PutTopology stores a topology document listing the given endpoints under key.
func PutTopology(t *testing.T, kv jetstream.KeyValue, key string, endpoints ...types.Endpoint) {
	t.Helper()

	data, err := json.Marshal(struct {
		Endpoints []types.Endpoint `json:"endpoints"`
	}{Endpoints: endpoints})
	require.NoError(t, err)

	_, err = kv.Put(t.Context(), key, data)
	require.NoError(t, err, "failed to put topology document")
}
