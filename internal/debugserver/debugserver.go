// Package debugserver streams a running Thread's state to attached
// websocket clients for interactive debugging: ip, direction,
// context-stack depth, and the data register's identity after each
// step. Entirely observational — nothing here is read by
// eval_next_instr; a Server only watches a Thread from the outside.
//
// Restated around net/http's ServeMux and one fixed message shape
// instead of a generic named-server registry with per-server client
// maps.
package debugserver

import (
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dabernado/iris-go/internal/bytecode"
	"github.com/dabernado/iris-go/internal/vm"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// A debug endpoint is a developer tool attached over a trusted
	// loopback or VPN link, not a public API; origin checking is the
	// embedding host's job if it exposes this beyond localhost.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Snapshot is one step's observable state, serialized as JSON to every
// attached client.
type Snapshot struct {
	ThreadID   string `json:"thread_id"`
	IP         int    `json:"ip"`
	Opcode     string `json:"opcode"`
	Backward   bool   `json:"backward"`
	CtxDepth   int    `json:"ctx_depth"`
	DataAddr   string `json:"data_addr"`
	Status     string `json:"status"`
	StepNumber int    `json:"step_number"`
}

type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Server accepts websocket connections on /debug/stream and broadcasts
// Snapshots pushed via Publish to every attached client.
type Server struct {
	log *log.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

// New returns a Server logging to the given *log.Logger (or a default
// "iris/debugserver: " prefixed logger if nil).
func New(logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "iris/debugserver: ", log.LstdFlags)
	}
	return &Server{log: logger, clients: make(map[string]*client)}
}

// Handler returns the http.Handler to mount at the debug stream path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/stream", s.handleStream)
	return mux
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("upgrade failed: %v", err)
		return
	}

	id := uuid.NewString()
	c := &client{id: id, conn: conn}

	s.mu.Lock()
	s.clients[id] = c
	s.mu.Unlock()
	s.log.Printf("client %s attached", id)

	defer func() {
		s.mu.Lock()
		delete(s.clients, id)
		s.mu.Unlock()
		conn.Close()
		s.log.Printf("client %s detached", id)
	}()

	// The stream is one-directional (server -> client); drain and
	// discard any client frames so control frames (ping/close) are
	// still processed by gorilla's read loop.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ClientCount reports how many debug clients are currently attached.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Publish broadcasts snap to every attached client, dropping any client
// whose connection has gone bad.
func (s *Server) Publish(snap Snapshot) {
	s.mu.RLock()
	targets := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(snap); err != nil {
			s.log.Printf("client %s write failed, dropping: %v", c.id, err)
			s.mu.Lock()
			delete(s.clients, c.id)
			s.mu.Unlock()
			c.conn.Close()
		}
	}
}

// Observe builds a Snapshot from a Thread's current state and the
// status/opcode of the step that just ran, then publishes it. threadID
// identifies the Thread across steps (callers typically hold one per
// Thread, e.g. via uuid.NewString() at Thread creation).
func (s *Server) Observe(threadID string, th *vm.Thread, op bytecode.OpCode, status vm.EvalStatus, step int) {
	s.Publish(Snapshot{
		ThreadID:   threadID,
		IP:         th.Cont.IP,
		Opcode:     op.String(),
		Backward:   th.Cont.Backward,
		CtxDepth:   th.Ctx.Depth(),
		DataAddr:   fmt.Sprintf("%p", th.DataReg().Unsafe()),
		Status:     status.String(),
		StepNumber: step,
	})
}
