//Package listener accepts SIM photo change events over a websocket and
//hands them to a simphoto.Handler.
package listener

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chris-pikul/contacts-rcs/config"
	"github.com/chris-pikul/contacts-rcs/log"
	"github.com/chris-pikul/contacts-rcs/metrics"
	"github.com/chris-pikul/contacts-rcs/simphoto"
)

//Server is the event listener. Build one with NewServer, then Start it
type Server struct {
	handler  simphoto.Handler
	router   *http.ServeMux
	server   *http.Server
	upgrader websocket.Upgrader

	//ctx is handed to the handler and cancelled by Shutdown
	ctx    context.Context
	cancel context.CancelFunc

	clients     map[*Client]struct{}
	lockClients sync.Mutex
}

//NewServer prepares a listener delivering events to handler
func NewServer(opts config.ListenerOptions, handler simphoto.Handler) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: time.Minute,

			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	//Setup router
	s.router = http.NewServeMux()
	s.router.HandleFunc("/v1", s.handleWebsocket)
	if opts.MetricsPath != "" {
		s.router.Handle(opts.MetricsPath, metrics.Handler())
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler: s.router,
	}

	return s
}

//Handler returns the HTTP handler serving the websocket and metrics routes
func (s *Server) Handler() http.Handler {
	return s.router
}

//Start spins up the listener as a coroutine
func (s *Server) Start() {
	go func() {
		log.Infof("starting event listener on %s", s.server.Addr)
		err := s.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Err("closing event listener encountered an error", err)
		}
		log.Info("event listener closed")
	}()
}

//Shutdown performs the graceful shutdown of the listener
//using the provided context. Connected clients are disconnected
func (s *Server) Shutdown(ctx context.Context) error {
	s.server.SetKeepAlivesEnabled(false)
	err := s.server.Shutdown(ctx)

	s.cancel()

	//hijacked websocket connections are not tracked by http.Server
	s.lockClients.Lock()
	for c := range s.clients {
		c.conn.Close()
	}
	s.lockClients.Unlock()

	log.Info("completed listener shutdown")
	return err
}

//ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.lockClients.Lock()
	defer s.lockClients.Unlock()
	return len(s.clients)
}

func (s *Server) register(c *Client) {
	s.lockClients.Lock()
	s.clients[c] = struct{}{}
	s.lockClients.Unlock()

	metrics.ListenerClients.Inc()
	LogInfo(c, "new client registered")
}

func (s *Server) unregister(c *Client) {
	s.lockClients.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.lockClients.Unlock()

	if ok {
		metrics.ListenerClients.Dec()
		LogInfo(c, "client unregistered")
	}
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("upgrading connection to websocket failed: %s", err.Error())
		return
	}

	client := &Client{
		conn:       conn,
		sendBuffer: make(chan Message, 64),
		server:     s,
	}
	s.register(client)
	client.OnConnect()

	go client.watchWrites()
	go client.watchReads(s.ctx)
}
