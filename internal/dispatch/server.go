package dispatch

import (
	"bufio"
	"context"
	"log"
	"net"
	"time"

	"github.com/PineWarbler/iosim-go/internal/catalog"
	"github.com/PineWarbler/iosim-go/internal/entry"
	"github.com/PineWarbler/iosim-go/internal/registry"
)

// Server is the node's Dispatch Server (C5): it binds a listening socket,
// accepts one connection per batch, and hands decoded entries to the
// shared NodeState for the Executor to consume.
type Server struct {
	Addr          string
	AcceptTimeout time.Duration
	State         *NodeState
	Registry      *registry.Registry // used to resolve poll-all-inputs requests
	Logger        *log.Logger
}

// NewServer constructs a Server with sane defaults.
func NewServer(addr string, state *NodeState, reg *registry.Registry) *Server {
	return &Server{Addr: addr, AcceptTimeout: 3 * time.Second, State: state, Registry: reg}
}

// Serve binds addr and accepts connections until ctx is cancelled,
// spawning one short-lived handler goroutine per accepted connection
// (spec.md §4.5, §5).
func (s *Server) Serve(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		if tl, ok := ln.(*net.TCPListener); ok && s.AcceptTimeout > 0 {
			tl.SetDeadline(time.Now().Add(s.AcceptTimeout))
		}
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			s.logf("accept error: %v", err)
			continue
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}

	r := bufio.NewReader(conn)
	_, batch, err := entry.Decode(r)
	if err != nil {
		s.logf("frame decode error from %s: %v", conn.RemoteAddr(), err)
		return
	}

	data := batch.Data
	if len(data) == 0 {
		// A `w`-type request and an empty `d`-type frame are both treated
		// as "poll every claimed input" (spec.md §9 Open Questions).
		data = s.pollAllInputs()
	}

	s.State.Enqueue(data)
	s.State.WaitDrained()

	out, errs := s.State.DrainResults()
	reply := entry.Batch{Time: batch.Time, Data: out, Errors: errs}

	encoded, err := entry.Encode(entry.TypeData, reply)
	if err != nil {
		s.logf("frame encode error: %v", err)
		return
	}
	if _, err := conn.Write(encoded); err != nil {
		s.logf("write error to %s: %v", conn.RemoteAddr(), err)
	}
}

// pollAllInputs builds one poll entry per currently claimed AI/DI pin.
// AI entries carry a zero sample count so the executor falls back to its
// configured default (spec.md §4.6); DI entries carry no meaningful value.
func (s *Server) pollAllInputs() []entry.Entry {
	if s.Registry == nil {
		return nil
	}
	inputs := s.Registry.InputPins()
	out := make([]entry.Entry, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, entry.Entry{ChType: toEntryKind(in.Dir), Pin: in.Pin, Value: entry.NumValue(0), Time: nowSec()})
	}
	return out
}

func toEntryKind(d catalog.Direction) entry.Kind {
	if d == catalog.DI {
		return entry.KindDI
	}
	return entry.KindAI
}

func (s *Server) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

func nowSec() float64 {
	t := time.Now()
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
