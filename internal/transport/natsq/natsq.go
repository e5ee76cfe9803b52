// Package natsq consumes job requests from a NATS queue group and streams
// each job's messages to the request's reply subject.
package natsq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/programme-lv/fnjudge/internal/gatherer/natsgath"
	"github.com/programme-lv/fnjudge/internal/transport"
)

type Server struct {
	nc      *nats.Conn
	subject string
	queue   string
	h       transport.Handler
	log     *slog.Logger
}

func New(nc *nats.Conn, subject, queue string, h transport.Handler, log *slog.Logger) *Server {
	return &Server{nc: nc, subject: subject, queue: queue, h: h, log: log}
}

// Serve handles requests until ctx is done, then stops taking new ones
// and waits for running jobs to finish.
func (s *Server) Serve(ctx context.Context) error {
	jobCtx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup

	sub, err := s.nc.QueueSubscribe(s.subject, s.queue, func(m *nats.Msg) {
		if m.Reply == "" {
			s.log.Warn("dropping job request without reply subject", "subject", m.Subject)
			return
		}
		req, err := transport.DecodeRequest(m.Data)
		if err != nil {
			s.log.Warn("malformed job request", "err", err)
			if b, merr := transport.Rejection("", err); merr == nil {
				_ = s.nc.Publish(m.Reply, b)
			}
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.h.Handle(jobCtx, req, natsgath.New(s.nc, req.JobID, req.Kind, m.Reply, s.log))
		}()
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	s.log.Info("listening for jobs", "subject", s.subject, "queue", s.queue)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		s.log.Warn("drain subscription", "err", err)
	}
	wg.Wait()
	return nil
}
