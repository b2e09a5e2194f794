package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"wavedeck/internal/daemon"
	"wavedeck/internal/jobs"
	"wavedeck/internal/logging"
	"wavedeck/internal/services"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{
		daemon: d,
		logger: logging.NewComponentLogger(logger, "ipc"),
		ctx:    ctx,
	}
	if err := rpcServer.RegisterName("Wavedeck", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logging.NewComponentLogger(logger, "ipc"),
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	ctx := services.WithRequestID(s.ctx, uuid.NewString())
	handle, err := s.daemon.Submit(ctx, jobs.Request{Kind: jobs.Kind(req.Kind), Params: req.Params})
	switch {
	case err == nil:
		resp.Status = SubmitAccepted
		resp.Job = &handle
		logging.WithContext(ctx, s.logger).Info("job accepted",
			logging.String(logging.FieldEventType, "job_accepted"),
			logging.String(logging.FieldJobID, handle.ID),
			logging.String(logging.FieldJobKind, string(handle.Kind)),
		)
	case errors.Is(err, services.ErrBusy):
		resp.Status = SubmitBusy
		resp.Error = err.Error()
		resp.ErrorKind = services.KindBusy
	default:
		resp.Status = SubmitRejected
		resp.Error = err.Error()
		resp.ErrorKind = services.Classify(err)
	}
	return nil
}

func (s *service) Poll(_ PollRequest, resp *PollResponse) error {
	resp.Result = s.daemon.Poll()
	return nil
}

func (s *service) Wait(req WaitRequest, resp *WaitResponse) error {
	ctx := s.ctx
	if req.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutSeconds)*time.Second)
		defer cancel()
	}
	result, err := s.daemon.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		resp.TimedOut = true
		resp.Result = jobs.Result{Status: s.daemon.Snapshot().Status}
		return nil
	}
	if err != nil {
		return err
	}
	resp.Result = result
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Status = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) Stems(_ StemsRequest, resp *StemsResponse) error {
	source, stems := s.daemon.Stems()
	if stems == nil {
		stems = jobs.StemMap{}
	}
	resp.Source = source
	resp.Stems = stems
	return nil
}

func (s *service) SaveStem(req SaveStemRequest, resp *SaveStemResponse) error {
	path, err := s.daemon.SaveStem(req.Stem)
	if err != nil {
		resp.Error = err.Error()
		resp.ErrorKind = services.Classify(err)
		return nil
	}
	resp.Path = path
	return nil
}
