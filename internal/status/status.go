// Package status implements the kiosk's operator HTTP surface (spec
// §4.J): a localhost-bound /healthz and /inventory endpoint for ops
// diagnostics. It is not the touch UI and carries no per-transaction
// event stream.
package status

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/julienschmidt/httprouter"
)

// LinkState reports whether the serial link to the coin handler board is
// currently connected.
type LinkState func() bool

// InventorySnapshot reports the current bill and coin counters.
type InventorySnapshot func() (bills, coins map[int]int)

// Server is the operator status HTTP surface.
type Server struct {
	httpServer *http.Server
	startedAt  time.Time
}

// New builds the router and wraps it in an *http.Server bound to
// listenAddr. linkState and inventory are consulted live on every
// request; neither is cached.
func New(listenAddr string, linkState LinkState, inventory InventorySnapshot) *Server {
	router := httprouter.New()
	startedAt := time.Now()

	router.GET("/healthz", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":          "ok",
			"uptime_seconds":  int(time.Since(startedAt).Seconds()),
			"serial_link_connected": linkState(),
		})
	})

	router.GET("/inventory", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		bills, coins := inventory()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"bills": bills,
			"coins": coins,
		})
	})

	return &Server{
		httpServer: &http.Server{
			Addr:    listenAddr,
			Handler: router,
		},
		startedAt: startedAt,
	}
}

// ListenAndServe blocks serving requests until the server is shut down.
// Callers typically run it in its own goroutine.
func (s *Server) ListenAndServe() error {
	log.Info("status: listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server with http.Server.Close: the listener and all
// open connections are closed at once; in-flight requests are not drained.
func (s *Server) Shutdown() error {
	return s.httpServer.Close()
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("status: failed to encode response", "err", err)
	}
}
