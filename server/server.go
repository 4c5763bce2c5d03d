package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"gridvalue/grid_world"
	"gridvalue/server/cell_views"
	"gridvalue/server/fastview"
	"gridvalue/server/root_view"
	"gridvalue/utility_table"

	"github.com/gorilla/mux"
	channerics "github.com/niceyeti/channerics/channels"
)

const (
	// How often each websocket checks for a newly published table.
	pollResolution = time.Millisecond * 50
	// Time allowed for in-flight requests when the server shuts down.
	shutdownGracePeriod = 5 * time.Second
)

// Server serves the utility table of a single world: an svg page kept
// current over a websocket, and the raw table as JSON. The table is
// replaced wholesale by Publish, typically once when a run completes.
type Server struct {
	addr     string
	world    *grid_world.GridWorld
	rootView *root_view.RootView

	mu      sync.RWMutex
	table   *utility_table.UtilityTable
	page    root_view.PageData
	version int
}

// NewServer returns a server showing @initial until the first Publish.
func NewServer(
	addr string,
	world *grid_world.GridWorld,
	initial *utility_table.UtilityTable,
	status string,
) *Server {
	server := &Server{
		addr:     addr,
		world:    world,
		rootView: root_view.NewRootView(),
	}
	server.Publish(initial, status)
	return server
}

// Publish replaces the served table with a copy of @table.
func (server *Server) Publish(table *utility_table.UtilityTable, status string) {
	table = table.Clone()
	page := root_view.PageData{
		Status: status,
		Cells:  cell_views.Convert(server.world, table),
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	server.table = table
	server.page = page
	server.version++
}

func (server *Server) current() (root_view.PageData, *utility_table.UtilityTable, int) {
	server.mu.RLock()
	defer server.mu.RUnlock()
	return server.page, server.table, server.version
}

// Router returns the server's routes.
func (server *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/utilities", server.serveUtilities).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket)
	return router
}

// Serve listens until @ctx is cancelled, then shuts down gracefully.
func (server *Server) Serve(ctx context.Context) (err error) {
	srv := &http.Server{
		Addr:    server.addr,
		Handler: server.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Println("shutdown:", shutdownErr)
		}
	}()

	log.Printf("serving utilities on http://%s/", server.addr)
	if err = srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Serve the index.html main page.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")

	page, _, _ := server.current()
	if err := renderTemplate(w, server.rootView, page); err != nil {
		log.Println("render:", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// utilitiesResponse is the JSON form of the served table.
type utilitiesResponse struct {
	Status    string                      `json:"status"`
	Utilities *utility_table.UtilityTable `json:"utilities"`
}

func (server *Server) serveUtilities(w http.ResponseWriter, r *http.Request) {
	page, table, _ := server.current()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(utilitiesResponse{
		Status:    page.Status,
		Utilities: table,
	}); err != nil {
		log.Println("encode utilities:", err)
	}
}

// serveWebsocket publishes the current page to the client, and again
// whenever a new table is published, until the client disconnects.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	done := r.Context().Done()
	updates := channerics.Convert(done, server.pages(done), server.rootView.Update)

	publisher, err := fastview.NewPublisher(updates, w, r)
	if err != nil {
		log.Println(err)
		return
	}
	defer publisher.Close()

	if err = publisher.Sync(); err != nil {
		log.Println("websocket:", err)
	}
}

// pages emits the current page immediately and then each time its version changes.
func (server *Server) pages(done <-chan struct{}) <-chan root_view.PageData {
	output := make(chan root_view.PageData)

	go func() {
		defer close(output)

		seen := 0
		ticker := channerics.NewTicker(done, pollResolution)
		for {
			if page, _, version := server.current(); version != seen {
				select {
				case output <- page:
					seen = version
				case <-done:
					return
				}
			}

			select {
			case <-ticker:
			case <-done:
				return
			}
		}
	}()

	return output
}

func renderTemplate(
	w io.Writer,
	rootView *root_view.RootView,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = rootView.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}

	err = t.Execute(w, data)
	return
}
