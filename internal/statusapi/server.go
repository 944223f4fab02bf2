// Package statusapi exposes the minimal HTTP surface spec.md 6.1/6.2
// describe in logical (RPC) terms: a status endpoint and a
// newline-delimited-JSON debug stream, standing in for the full
// gRPC/protobuf server §1 explicitly puts out of scope. Routing follows
// the teacher's own HTTP servers (cmd/explorer, cmd/xchainserver/server,
// walletserver) — github.com/gorilla/mux plus a logrus request logger —
// rather than introducing a second, unused router library: the
// teacher's go.mod lists github.com/go-chi/chi/v5 but no teacher file
// actually imports it, while gorilla/mux is the router every one of the
// teacher's three HTTP servers is built with.
package statusapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"dnaindex/internal/blockstore"
	"dnaindex/internal/chainmodel"
	"dnaindex/internal/chainview"
)

// Server is the status/debug HTTP surface for one deployment.
type Server struct {
	router     *mux.Router
	httpServer *http.Server

	view  *chainview.View
	store *blockstore.Store
	opts  chainmodel.SegmentOptions
	log   *logrus.Entry
}

// NewServer builds the router and underlying http.Server, mirroring
// cmd/explorer/server.go's NewServer shape.
func NewServer(addr string, view *chainview.View, store *blockstore.Store, opts chainmodel.SegmentOptions, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Server{view: view, store: store, opts: opts, log: log.WithField("component", "statusapi")}
	s.routes()
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s
}

func (s *Server) Start() error { return s.httpServer.ListenAndServe() }

func (s *Server) Shutdown(ctx context.Context) error { return s.httpServer.Shutdown(ctx) }

func (s *Server) routes() {
	s.router = mux.NewRouter()
	s.router.Use(requestLogger(s.log))
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/debug/stream", s.handleDebugStream).Methods(http.MethodGet)
}

func requestLogger(log *logrus.Entry) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
			}).Infof("%s", time.Since(start))
		})
	}
}
