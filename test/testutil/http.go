package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

// HTTPNode is an httptest server standing in for one API node.
//
// GET /health answers 200 while the node is healthy. Every other path
// answers with the configured status and a JSON body naming the node and
// the request path.
type HTTPNode struct {
	*httptest.Server

	mu     sync.Mutex
	status int
	delay  time.Duration
	calls  atomic.Int64
}

// HTTPReply is the JSON body written by HTTPNode.
type HTTPReply struct {
	Node   string `json:"node"`
	Method string `json:"method"`
	Path   string `json:"path"`
}

// NewHTTPNode starts an HTTPNode that answers 200. It is closed when the
// test completes.
func NewHTTPNode(t testing.TB) *HTTPNode {
	t.Helper()

	n := &HTTPNode{status: http.StatusOK}

	router := mux.NewRouter()
	router.HandleFunc("/health", n.health).Methods(http.MethodGet)
	router.PathPrefix("/").HandlerFunc(n.serve)

	n.Server = httptest.NewServer(router)
	t.Cleanup(n.Close)

	return n
}

// SetStatus sets the status code returned by the node.
func (n *HTTPNode) SetStatus(code int) *HTTPNode {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.status = code

	return n
}

// SetDelay delays every response by d.
func (n *HTTPNode) SetDelay(d time.Duration) *HTTPNode {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.delay = d

	return n
}

// Calls returns the number of requests served.
func (n *HTTPNode) Calls() int64 {
	return n.calls.Load()
}

func (n *HTTPNode) settings() (int, time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.status, n.delay
}

func (n *HTTPNode) wait(r *http.Request, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-r.Context().Done():
		return false
	case <-timer.C:
		return true
	}
}

func (n *HTTPNode) health(w http.ResponseWriter, r *http.Request) {
	n.calls.Add(1)

	status, delay := n.settings()
	if !n.wait(r, delay) {
		return
	}
	if status >= http.StatusInternalServerError {
		w.WriteHeader(status)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (n *HTTPNode) serve(w http.ResponseWriter, r *http.Request) {
	n.calls.Add(1)

	status, delay := n.settings()
	if !n.wait(r, delay) {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPReply{
		Node:   n.URL,
		Method: r.Method,
		Path:   r.URL.Path,
	})
}
