package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tattletale/internal/observerproto"
	"tattletale/internal/sim/kernel"
	"tattletale/internal/sim/world"
)

// Describer renders a kernel for humans. It runs on the goroutine that
// steps the tale.
type Describer func(kernel.Record) string

// Server fans tick entries out to websocket observers. It is a
// world.TickLogger; slow observers lose ticks rather than stall the tale.
type Server struct {
	log         *zap.Logger
	describe    Describer
	allowRemote bool

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu       sync.Mutex
	boot     observerproto.BootstrapResponse
	sessions map[string]*session
	closed   bool
}

type session struct {
	conn   *websocket.Conn
	out    chan []byte
	filter filter
}

type filter struct {
	actors map[int]bool
	values bool
}

type Options struct {
	Describer Describer
	// Accept observers from non-loopback addresses.
	AllowRemote bool
	Logger      *zap.Logger
}

func NewServer(boot observerproto.BootstrapResponse, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	boot.ProtocolVersion = observerproto.Version
	return &Server{
		log:         opts.Logger,
		describe:    opts.Describer,
		allowRemote: opts.AllowRemote,
		boot:        boot,
		sessions:    map[string]*session{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Register mounts the bootstrap and websocket handlers under prefix.
func (s *Server) Register(mux *http.ServeMux, prefix string) {
	mux.HandleFunc(prefix+"/bootstrap", s.BootstrapHandler())
	mux.HandleFunc(prefix+"/ws", s.WSHandler())
}

func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// WriteTick converts the entry once and queues a filtered copy for every
// session.
func (s *Server) WriteTick(e world.TickLogEntry) error {
	infos := make([]observerproto.KernelInfo, len(e.Kernels))
	for i, r := range e.Kernels {
		infos[i] = observerproto.KernelInfo{
			ID:           r.ID,
			Kind:         r.Kind,
			Owner:        r.Owner,
			Tag:          r.Tag,
			Value:        r.Value,
			Chance:       r.Chance,
			Reasons:      r.Reasons,
			Participants: r.Participants,
		}
		if s.describe != nil {
			infos[i].Text = s.describe(r)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.boot.Tick = e.Tick
	for id, sess := range s.sessions {
		msg := observerproto.TickMsg{
			Type:            observerproto.TypeTick,
			ProtocolVersion: observerproto.Version,
			Tick:            e.Tick,
			Day:             e.Day,
			Digest:          e.Digest,
			Kernels:         sess.filter.apply(infos),
		}
		b, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		select {
		case sess.out <- b:
		default:
			s.log.Debug("observer dropped tick", zap.String("session", id), zap.Int("tick", e.Tick))
		}
	}
	return nil
}

func (f filter) apply(in []observerproto.KernelInfo) []observerproto.KernelInfo {
	var out []observerproto.KernelInfo
	for _, k := range in {
		if !f.values && k.Kind != "interaction" {
			continue
		}
		if len(f.actors) > 0 && !f.involves(k) {
			continue
		}
		out = append(out, k)
	}
	return out
}

func (f filter) involves(k observerproto.KernelInfo) bool {
	if f.actors[k.Owner] {
		return true
	}
	for _, p := range k.Participants {
		if f.actors[p] {
			return true
		}
	}
	return false
}

func newFilter(sub observerproto.SubscribeMsg) filter {
	f := filter{values: sub.Values}
	if len(sub.Actors) > 0 {
		f.actors = make(map[int]bool, len(sub.Actors))
		for _, a := range sub.Actors {
			f.actors[a] = true
		}
	}
	return f
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		s.mu.Lock()
		resp := s.boot
		s.mu.Unlock()

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		sub, err := readSubscribe(conn)
		if err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		sess := &session{conn: conn, out: make(chan []byte, 64), filter: newFilter(sub)}
		if !s.addSession(sid, sess) {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
			return
		}
		s.log.Info("observer joined", zap.String("session", sid), zap.String("remote", r.RemoteAddr))
		defer func() {
			s.removeSession(sid)
			s.log.Info("observer left", zap.String("session", sid))
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			sub, err := readSubscribe(conn)
			if errors.Is(err, errBadSubscribe) {
				continue
			}
			if err != nil {
				break
			}
			s.mu.Lock()
			sess.filter = newFilter(sub)
			s.mu.Unlock()
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		<-writerDone
	}
}

var errBadSubscribe = errors.New("expected SUBSCRIBE")

func readSubscribe(conn *websocket.Conn) (observerproto.SubscribeMsg, error) {
	var sub observerproto.SubscribeMsg
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return sub, err
	}
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, errBadSubscribe
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
		return sub, errBadSubscribe
	}
	return sub, nil
}

func (s *Server) addSession(id string, sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.sessions[id] = sess
	return true
}

func (s *Server) removeSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Close disconnects every observer and refuses new ones. Hijacked websocket
// connections are not covered by http.Server.Shutdown.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, sess := range s.sessions {
		_ = sess.conn.Close()
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
