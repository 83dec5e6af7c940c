package rtmp

import (
	"context"
	"net"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/torresjeff/rtmpflv/config"
	"go.uber.org/zap"
)

// URL is an rtmp://host[:port]/app/media address split into what the session
// needs.
type URL struct {
	// Host is host:port, with the default port filled in.
	Host string
	App  string
	// Media is the last path element, with the query string if there was one.
	Media string
	// Location is the address as given, without the scheme.
	Location string
}

// ParseURL splits raw into host, application and media name. Everything
// between the host and the last path element is the application.
func ParseURL(raw string) (*URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidURL, err.Error())
	}
	if u.Scheme != "" && u.Scheme != "rtmp" {
		return nil, errors.Wrapf(ErrInvalidURL, "unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.Wrap(ErrInvalidURL, "missing host")
	}

	location := u.Host + u.Path
	if u.RawQuery != "" {
		location += "?" + u.RawQuery
	}

	host := u.Host
	if u.Port() == "" {
		host += ":" + config.DefaultPort
	}

	path := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	elements := len(path)
	media := path[elements-1]
	if media == "" {
		return nil, errors.Wrap(ErrInvalidURL, "missing media name")
	}
	if u.RawQuery != "" {
		media += "?" + u.RawQuery
	}

	return &URL{
		Host:     host,
		App:      strings.Join(path[:elements-1], "/"),
		Media:    media,
		Location: location,
	}, nil
}

// Dial connects to the server in rawURL and plays its media. It returns once
// the server started the stream; the media is then read from the Conn.
func Dial(ctx context.Context, rawURL string, opts ...Option) (*Conn, error) {
	return dial(ctx, rawURL, opts, (*Conn).startPlay)
}

// DialPublish connects to the server in rawURL and publishes to it. It returns
// once the server accepted the stream; media is then written to the Conn.
func DialPublish(ctx context.Context, rawURL string, opts ...Option) (*Conn, error) {
	return dial(ctx, rawURL, opts, (*Conn).startPublish)
}

func dial(ctx context.Context, rawURL string, opts []Option, negotiate func(*Conn, context.Context, *URL) error) (*Conn, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	var dialer net.Dialer
	netConn, err := dialer.DialContext(ctx, "tcp", u.Host)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", u.Host)
	}
	return clientConn(ctx, netConn, u, opts, negotiate)
}

// clientConn runs the active side of a session over an established
// connection. The connection is closed if anything fails.
func clientConn(ctx context.Context, netConn net.Conn, u *URL, opts []Option, negotiate func(*Conn, context.Context, *URL) error) (*Conn, error) {
	c := newConn(netConn, RoleActive, opts)
	if err := c.handshake(ctx); err != nil {
		c.Close()
		return nil, err
	}
	c.start()
	if err := negotiate(c, ctx, u); err != nil {
		c.Close()
		return nil, err
	}
	c.logger.Info("stream started", zap.String("app", u.App), zap.String("media", u.Media), zap.Stringer("mode", c.mode))
	return c, nil
}
