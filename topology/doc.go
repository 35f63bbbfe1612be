// Package topology holds the datacenter topology of the meridian router and
// the discovery feeds that keep it current.
//
// # Topology
//
// [Topology] maps datacenter names to node lists and tracks the single
// active datacenter. Readers take an immutable [Snapshot] without locking:
//
//	topo, _ := topology.New(datacenters, "us_east")
//	snap := topo.Snapshot()
//	dc := snap.ActiveDatacenter()
//
// Writers ([Topology.Replace], [Topology.SetActive], [Topology.FailoverFrom])
// serialize on a mutex and publish a new snapshot atomically.
// FailoverFrom only switches when the exhausted datacenter is still active,
// so concurrent callers converge on one switch.
//
// Each datacenter carries a generation that changes when its node list
// changes or when it becomes active. Selection policies key their state on
// it.
//
// # Discovery Feeds
//
// A [Source] emits complete lists of (datacenter, address, weight) tuples.
// [Group] turns a list into datacenters preserving first-seen order.
//
// [NATS] watches a NATS KV key holding a JSON [Document]:
//
//	nc, _ := nats.Connect("nats://localhost:4222")
//	js, _ := jetstream.New(nc)
//	kv, _ := js.KeyValue(ctx, "meridian-config")
//
//	source, _ := topology.NewNATS(kv, topology.WithKey("api.topology"))
//
//	router, _ := meridian.NewRouter(datacenters,
//	    meridian.WithTopologySource(source),
//	)
//
// The document lists every endpoint:
//
//	{
//	    "endpoints": [
//	        {"datacenter": "us_east", "address": "https://10.0.0.1:8082", "weight": 2},
//	        {"datacenter": "us_west", "address": "https://10.1.0.1:8082"}
//	    ]
//	}
//
// Deleting the key or storing an invalid document keeps the last topology.
//
// [File] reads a YAML [FileDocument] and reloads it when the file changes.
//
// # Local Topology
//
// [Local] is an in-memory source for tests and embedding:
//
//	local := topology.NewLocal()
//	local.Publish([]types.Endpoint{
//	    {Datacenter: "us_east", Address: "10.0.0.1:8082"},
//	})
package topology
