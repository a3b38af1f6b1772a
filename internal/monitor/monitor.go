package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"sort"
	"strconv"

	"github.com/gorilla/mux"

	"clocksim/internal/vm"
)

// Peer is the read-only view the monitor needs of a running peer.
type Peer interface {
	ID() int
	Snapshot() vm.Snapshot
}

// Server serves simulation state over HTTP.
type Server struct {
	peers map[int]Peer
	logs  *log.Logger
	httpd *http.Server
	ln    net.Listener
}

// New creates a monitor over the given peers.
func New(peers []Peer, logw io.Writer) *Server {
	if logw == nil {
		logw = os.Stderr
	}
	s := &Server{
		peers: make(map[int]Peer, len(peers)),
		logs:  log.New(logw, "", log.LstdFlags),
	}
	for _, p := range peers {
		s.peers[p.ID()] = p
	}
	return s
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/peers", s.handlePeers).Methods(http.MethodGet)
	r.HandleFunc("/peers/{id:[0-9]+}", s.handlePeer).Methods(http.MethodGet)
	return r
}

// Start binds the address and serves in the background. Use Addr to discover
// the bound address when addr uses port 0.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("monitor failed to listen on %s: %w", addr, err)
	}
	s.ln = ln
	s.httpd = &http.Server{Handler: s.Router()}

	go func() {
		if err := s.httpd.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logs.Printf("[monitor] server error: %v", err)
		}
	}()

	s.logs.Printf("[monitor] listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address, or empty before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown stops serving.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpd == nil {
		return nil
	}
	return s.httpd.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	ids := make([]int, 0, len(s.peers))
	for id := range s.peers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	snapshots := make([]vm.Snapshot, 0, len(ids))
	for _, id := range ids {
		snapshots = append(snapshots, s.peers[id].Snapshot())
	}
	writeJSON(w, http.StatusOK, snapshots)
}

func (s *Server) handlePeer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid peer id"})
		return
	}
	p, ok := s.peers[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("peer %d not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, p.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
