// Package testutil provides test doubles and helpers for meridian tests.
//
// # Dispatch Doubles
//
// [Cluster] simulates a set of nodes with scripted outcomes. Its Attempt
// method has the signature of meridian.AttemptFunc and its Send method
// satisfies meridian.Dispatcher[string, string]:
//
//	cluster := testutil.NewCluster()
//	cluster.Fail("10.0.0.1:8082", types.Retryable(errors.New("connection refused")))
//	cluster.Script("10.0.0.2:8082", errBusy, nil) // fails once, then succeeds
//
//	err := router.Execute(ctx, cluster.Attempt)
//	calls := cluster.Calls("10.0.0.1:8082")
//
// # Metrics
//
// [TestMetricsCollector] records every metrics call for assertions.
//
// # Integration Test Helpers
//
//   - StartNATS: Starts an embedded NATS server with JetStream
//   - NATSServer.CreateKV: Creates a KV bucket on it
//   - PutTopology: Writes a topology document to a KV bucket
//   - NewHTTPNode: Starts an HTTP server acting as one API node
package testutil
