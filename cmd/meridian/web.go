package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arloliu/meridian"
	"github.com/arloliu/meridian/types"
)

type healthResponse struct {
	Active string                        `json:"active"`
	Nodes  map[string]types.HealthRecord `json:"nodes"`
}

type topologyResponse struct {
	Active      string             `json:"active"`
	Version     uint64             `json:"version"`
	Datacenters []types.Datacenter `json:"datacenters"`
}

func newWebHandler(registry *prometheus.Registry, router *meridian.Router) http.Handler {
	r := mux.NewRouter()

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.HandleFunc("/health", func(rw http.ResponseWriter, _ *http.Request) {
		writeJSON(rw, healthResponse{
			Active: router.ActiveDatacenter(),
			Nodes:  router.HealthSnapshot(),
		})
	}).Methods(http.MethodGet)
	r.HandleFunc("/topology", func(rw http.ResponseWriter, _ *http.Request) {
		snap := router.Topology()
		writeJSON(rw, topologyResponse{
			Active:      snap.Active(),
			Version:     snap.Version(),
			Datacenters: snap.Datacenters(),
		})
	}).Methods(http.MethodGet)

	return r
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
	}
}
