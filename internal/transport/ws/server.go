// Package ws is the driver-facing session server. One websocket
// connection is one run: HELLO opens it, CALL/RESULT pairs advance it,
// RUN_END closes it. A dropped connection interrupts the run.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"econbench.ai/internal/persistence/resultdb"
	"econbench.ai/internal/persistence/runlog"
	"econbench.ai/internal/persistence/snapshot"
	"econbench.ai/internal/protocol"
	"econbench.ai/internal/sim/run"
)

// WorldFactory builds a fresh world for a benchmark. The ws layer never
// touches benchmark packages directly.
type WorldFactory func(benchmark string, seed int64) (run.World, error)

type Config struct {
	PolicyDigest string
	LogDir       string // per-run audit logs; empty disables
	SnapDir      string // interrupt snapshots; empty disables
	Results      *resultdb.DB
	Logger       *log.Logger
}

type Server struct {
	factory WorldFactory
	mgr     *run.Manager
	cfg     Config

	upgrader websocket.Upgrader
}

func NewServer(factory WorldFactory, mgr *run.Manager, cfg Config) *Server {
	return &Server{
		factory: factory,
		mgr:     mgr,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		runner, seed := s.handshake(conn)
		if runner == nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		out := make(chan []byte, 16)
		go s.writer(ctx, cancel, conn, runner, out)

		s.reader(ctx, conn, runner, out)

		// A vanished driver interrupts the run; a finished run makes
		// this a no-op.
		runner.Interrupt()
		<-runner.Done()

		// Terminal bookkeeping lives here, not in the writer: every
		// teardown path funnels through this point exactly once.
		s.persistRun(runner, seed)
	}
}

// handshake consumes HELLO and answers WELCOME, creating the run.
func (s *Server) handshake(conn *websocket.Conn) (*run.Runner, int64) {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, 0
	}
	if err := protocol.ValidateHello(msg); err != nil {
		s.closePolicy(conn, "expected valid HELLO: "+err.Error())
		return nil, 0
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil, 0
	}
	if hello.ProtocolVersion != protocol.Version {
		s.closePolicy(conn, "bad protocol_version")
		return nil, 0
	}

	seed := hello.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	world, err := s.factory(hello.Benchmark, seed)
	if err != nil {
		s.closePolicy(conn, err.Error())
		return nil, 0
	}

	runID := uuid.NewString()
	opts := run.Options{
		RunID:        runID,
		Model:        hello.Model,
		Seed:         seed,
		PolicyDigest: s.cfg.PolicyDigest,
		Logger:       s.cfg.Logger,
	}
	if s.cfg.LogDir != "" {
		audit, err := runlog.NewWriter(s.cfg.LogDir, runID)
		if err != nil {
			s.logf("[ws] run log for %s: %v", runID, err)
		} else {
			opts.Audit = audit
		}
	}
	if s.cfg.SnapDir != "" {
		opts.SnapshotPath = snapshot.Path(s.cfg.SnapDir, runID)
	}
	runner := run.New(world, opts)

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		RunID:           runner.ID(),
		Benchmark:       hello.Benchmark,
		PolicyDigest:    s.cfg.PolicyDigest,
		Tools:           runner.Tools(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil, 0
	}

	runner.Start()
	s.mgr.Add(runner)
	s.logf("[ws] run %s started: benchmark=%s model=%q seed=%d",
		runner.ID(), hello.Benchmark, hello.Model, seed)
	return runner, seed
}

// reader pumps CALL messages into the run loop, one at a time.
func (s *Server) reader(ctx context.Context, conn *websocket.Conn, runner *run.Runner, out chan<- []byte) {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil || base.Type != protocol.TypeCall {
			s.enqueue(ctx, out, errorResult("", protocol.ErrProtoBadRequest, "expected CALL"))
			continue
		}
		if err := protocol.ValidateCall(msg); err != nil {
			var partial protocol.CallMsg
			_ = json.Unmarshal(msg, &partial)
			s.enqueue(ctx, out, errorResult(partial.ID, protocol.ErrProtoBadRequest, err.Error()))
			continue
		}
		var call protocol.CallMsg
		if err := json.Unmarshal(msg, &call); err != nil {
			s.enqueue(ctx, out, errorResult("", protocol.ErrProtoBadRequest, "malformed CALL"))
			continue
		}

		res, ok := runner.Call(ctx, call.ID, call.Tool, call.Input)
		if !ok {
			return
		}
		s.enqueue(ctx, out, res)
	}
}

// writer owns all connection writes: queued results first, then the
// terminal RUN_END once the run finishes. Its exit closes the
// connection, which unblocks a reader stuck in ReadMessage.
func (s *Server) writer(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, runner *run.Runner, out <-chan []byte) {
	defer func() {
		cancel()
		_ = conn.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			// The session is tearing down under the run. A run that
			// finished anyway still gets its RUN_END.
			select {
			case <-runner.Done():
				s.sendRunEnd(conn, runner)
			default:
			}
			return
		case b := <-out:
			if !s.write(conn, b) {
				return
			}
		case <-runner.Done():
			// Give the result of the terminating call a moment to land
			// in the queue before the RUN_END goes out.
			grace := time.After(200 * time.Millisecond)
		drain:
			for {
				select {
				case b := <-out:
					if !s.write(conn, b) {
						break drain
					}
				case <-grace:
					break drain
				}
			}
			s.sendRunEnd(conn, runner)
			return
		}
	}
}

// sendRunEnd delivers the terminal RUN_END and a normal close. Best
// effort: a broken connection only costs the driver the message.
func (s *Server) sendRunEnd(conn *websocket.Conn, runner *run.Runner) {
	end := protocol.RunEndMsg{
		Type:            protocol.TypeRunEnd,
		ProtocolVersion: protocol.Version,
		Result:          runner.Result(),
	}
	if err := writeJSON(conn, end); err != nil {
		s.logf("[ws] RUN_END for %s: %v", runner.ID(), err)
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run over"),
		time.Now().Add(time.Second))
}

// persistRun indexes the finished run and releases its manager entry.
func (s *Server) persistRun(runner *run.Runner, seed int64) {
	if s.cfg.Results != nil {
		row := resultdb.Row{
			RunID:     runner.ID(),
			Benchmark: runner.Benchmark(),
			Seed:      seed,
			Result:    runner.Result(),
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.cfg.Results.Insert(ctx, row); err != nil {
			s.logf("[ws] persist %s: %v", runner.ID(), err)
		}
	}
	s.mgr.Remove(runner.ID())
}

func (s *Server) enqueue(ctx context.Context, out chan<- []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case out <- b:
	case <-ctx.Done():
	}
}

func (s *Server) write(conn *websocket.Conn, b []byte) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b) == nil
}

func (s *Server) closePolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func (s *Server) logf(format string, args ...any) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Printf(format, args...)
	}
}

func errorResult(id, code, msg string) protocol.ResultMsg {
	return protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ID:              id,
		OK:              false,
		Code:            code,
		Message:         msg,
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
