package rpc

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"sync"

	"relfiles/internal/related"
)

// Server answers related-files requests from an editor host.
type Server struct {
	stdin   io.Reader
	stdout  io.Writer
	logger  *slog.Logger
	version string
	service *related.Service
	methods map[string]methodHandler

	writeMu  sync.Mutex
	inflight sync.WaitGroup
}

// NewServer creates a server reading stdin and writing stdout.
func NewServer(version string, service *related.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		logger:  logger,
		version: version,
		service: service,
	}
	s.registerMethods()
	return s
}

// SetStdin sets the input stream (for testing)
func (s *Server) SetStdin(r io.Reader) {
	s.stdin = r
}

// SetStdout sets the output stream (for testing)
func (s *Server) SetStdout(w io.Writer) {
	s.stdout = w
}

type incoming struct {
	msg *Message
	raw []byte
	err error
}

// Serve processes messages until the input ends, a shutdown request or exit
// notification arrives, or ctx is done. Requests run concurrently; Serve
// waits for the ones in flight before returning.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("RPC server starting", "version", s.version)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.inflight.Wait()

	msgs := make(chan incoming)
	go s.readLoop(ctx, msgs)

	for {
		var in incoming
		select {
		case <-ctx.Done():
			s.logger.Info("RPC server shutting down (context done)")
			return nil
		case in = <-msgs:
		}

		if in.err != nil {
			if stderrors.Is(in.err, io.EOF) {
				s.logger.Info("RPC server shutting down (EOF)")
				return nil
			}
			if in.raw == nil {
				s.logger.Error("Error reading message", "error", in.err.Error())
				return in.err
			}
			s.logger.Warn("Malformed message", "error", in.err.Error())
			s.send(NewErrorMessage(nil, ParseError, in.err.Error(), nil))
			continue
		}

		msg := in.msg
		switch {
		case msg.Jsonrpc != "2.0" || msg.Method == "":
			s.send(NewErrorMessage(msg.Id, InvalidRequest, "Invalid message: not a JSON-RPC 2.0 request or notification", nil))
		case msg.Method == "shutdown":
			s.inflight.Wait()
			if msg.IsRequest() {
				s.send(NewResultMessage(msg.Id, struct{}{}))
			}
			s.logger.Info("RPC server shutting down (shutdown request)")
			return nil
		case msg.Method == "exit":
			s.logger.Info("RPC server shutting down (exit)")
			return nil
		default:
			s.inflight.Add(1)
			go func() {
				defer s.inflight.Done()
				if resp := s.handleMessage(ctx, msg); resp != nil {
					s.send(resp)
				}
			}()
		}
	}
}

func (s *Server) readLoop(ctx context.Context, out chan<- incoming) {
	r := newReader(s.stdin)
	for {
		msg, raw, err := r.next()
		select {
		case out <- incoming{msg: msg, raw: raw, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil && raw == nil {
			return
		}
	}
}

func (s *Server) send(msg *Message) {
	if err := s.writeMessage(msg); err != nil {
		s.logger.Error("Error writing response", "error", err.Error())
	}
}
