package rtmp

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/torresjeff/rtmpflv/config"
	"go.uber.org/zap"
)

// Listener accepts RTMP peers on a TCP address.
type Listener struct {
	listener net.Listener
	opts     []Option
	logger   *zap.Logger
}

// Listen listens on addr. If addr is empty, ":1935" is used.
func Listen(ctx context.Context, addr string, opts ...Option) (*Listener, error) {
	if addr == "" {
		addr = ":" + config.DefaultPort
	}
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", addr)
	}
	o := buildOptions(opts)
	o.logger.Info("listening", zap.Stringer("addr", listener.Addr()))
	return &Listener{listener: listener, opts: opts, logger: o.logger}, nil
}

// Accept waits for a peer, performs the handshake and answers the peer's
// calls until it plays or publishes. The returned Conn's Mode tells which:
// ModePublish if the peer plays (we write), ModePlay if it publishes (we
// read).
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	netConn, err := l.acceptContext(ctx)
	if err != nil {
		return nil, err
	}
	return serverConn(ctx, netConn, l.opts)
}

func (l *Listener) acceptContext(ctx context.Context) (net.Conn, error) {
	type deadliner interface {
		SetDeadline(time.Time) error
	}
	d, canInterrupt := l.listener.(deadliner)
	stop := make(chan struct{})
	defer close(stop)
	if canInterrupt {
		go func() {
			select {
			case <-ctx.Done():
				d.SetDeadline(time.Now())
			case <-stop:
			}
		}()
	}

	netConn, err := l.listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			if canInterrupt {
				d.SetDeadline(time.Time{})
			}
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(err, "accept")
	}
	l.logger.Info("accepted incoming connection", zap.Stringer("remote", netConn.RemoteAddr()))
	return netConn, nil
}

// serverConn runs the passive side of a session over an accepted connection.
// The connection is closed if anything fails.
func serverConn(ctx context.Context, netConn net.Conn, opts []Option) (*Conn, error) {
	c := newConn(netConn, RolePassive, opts)
	if err := c.handshake(ctx); err != nil {
		c.Close()
		return nil, err
	}
	c.start()
	if err := c.waitForMode(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

func (l *Listener) Close() error {
	return l.listener.Close()
}

// Handler serves one accepted session. The Conn is closed when it returns.
type Handler func(c *Conn)

// Server accepts peers and hands each negotiated session to Handler in its own
// goroutine.
type Server struct {
	Addr    string
	Logger  *zap.Logger
	Config  *config.Config
	Handler Handler
}

// ListenAndServe listens on s.Addr (":1935" if empty) and serves until ctx is
// done. It waits for running handlers before returning.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	opts := []Option{WithLogger(s.Logger), WithConfig(s.Config)}
	listener, err := Listen(ctx, s.Addr, opts...)
	if err != nil {
		return err
	}
	defer listener.Close()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		netConn, err := listener.acceptContext(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.Logger.Error("error accepting incoming connection", zap.Error(err))
			continue
		}

		wg.Add(1)
		go func(netConn net.Conn) {
			defer wg.Done()
			c, err := serverConn(ctx, netConn, opts)
			if err != nil {
				s.Logger.Error("session ended before a stream was negotiated", zap.Stringer("remote", netConn.RemoteAddr()), zap.Error(err))
				return
			}
			defer c.Close()

			s.Logger.Info("starting session", zap.String("session", c.session.GetID()), zap.Stringer("mode", c.Mode()))
			if s.Handler != nil {
				s.Handler(c)
			}
			s.Logger.Info("session ended", zap.String("session", c.session.GetID()))
		}(netConn)
	}
}
