// Copyright (c) 2024 AfterNET development team
// released under the MIT license

package ircstream

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goshuirc/eventmgr"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/afternet/irctest/ircmsg"
)

const defaultTimeout = time.Minute

// Config describes how to reach a server. The zero value of every field
// other than Server is usable; defaults are applied at dial time.
type Config struct {
	// Server is the host:port to connect to (or the URL for DialWebSocket).
	Server string
	// UseTLS wraps the TCP connection in TLS.
	UseTLS bool
	// TLSConfig configures TLS when UseTLS is set; nil means defaults
	// with ServerName derived from Server.
	TLSConfig *tls.Config
	// Timeout bounds dialing and each write. Defaults to one minute.
	Timeout time.Duration
	// Logger receives debug logging of raw lines in and out. Defaults to
	// the logrus standard logger.
	Logger logrus.FieldLogger
	// DisableAutoPong suppresses the built-in PING responder, for tests
	// that want to observe or fail keepalives themselves.
	DisableAutoPong bool
}

func (config *Config) withDefaults() Config {
	out := *config
	if out.Timeout == 0 {
		out.Timeout = defaultTimeout
	}
	if out.Logger == nil {
		out.Logger = logrus.StandardLogger()
	}
	return out
}

// transport is the byte-out half of a connection; bytes in arrive via
// the read pump feeding the engine.
type transport interface {
	writeLine(line string, deadline time.Time) error
	close() error
}

// Conn is one logical connection: a transport plus the Engine observing
// its read side. The Engine's wait and history methods are promoted onto
// Conn.
type Conn struct {
	*Engine

	config Config

	writeMu sync.Mutex
	trans   transport

	closeOnce sync.Once
	end       chan struct{}

	errMu   sync.Mutex
	lastErr error
}

func newConn(config Config, trans transport) *Conn {
	c := &Conn{
		Engine: NewEngine(config.Logger),
		config: config,
		trans:  trans,
		end:    make(chan struct{}),
	}
	if !config.DisableAutoPong {
		c.HandleCommand("PING", func(event string, info eventmgr.InfoMap) {
			msg := info["message"].(ircmsg.Message)
			c.Send("PONG", msg.Trailing())
		}, -10)
	}
	return c
}

// Dial opens a TCP (or TLS) connection to config.Server and starts the
// read pump that feeds the engine.
func Dial(config Config) (*Conn, error) {
	config = config.withDefaults()

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()
	socket, err := (&net.Dialer{}).DialContext(ctx, "tcp", config.Server)
	if err != nil {
		return nil, err
	}

	if config.UseTLS {
		tlsConfig := config.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{}
		}
		if tlsConfig.ServerName == "" && !tlsConfig.InsecureSkipVerify {
			if host, _, err := net.SplitHostPort(config.Server); err == nil {
				tlsConfig.ServerName = host
			} else {
				tlsConfig.ServerName = config.Server
			}
		}
		tlsSocket := tls.Client(socket, tlsConfig)
		if err := tlsSocket.HandshakeContext(ctx); err != nil {
			socket.Close()
			return nil, err
		}
		socket = tlsSocket
	}

	c := newConn(config, &socketTransport{socket: socket})
	go c.readPump(socket)
	return c, nil
}

// DialWebSocket opens a WebSocket connection to the given URL carrying
// the same line protocol, one IRC line per text frame.
func DialWebSocket(config Config, url string, header http.Header) (*Conn, error) {
	config = config.withDefaults()

	dialer := websocket.Dialer{
		HandshakeTimeout: config.Timeout,
		TLSClientConfig:  config.TLSConfig,
	}
	ws, _, err := dialer.Dial(url, header)
	if err != nil {
		return nil, err
	}

	c := newConn(config, &wsTransport{ws: ws})
	go c.wsReadPump(ws)
	return c, nil
}

// NewConn wires an Engine to a caller-supplied byte stream, for
// transports set up elsewhere (proxies, in-memory pipes). The returned
// Conn reads from rw until error and writes lines to it.
func NewConn(config Config, rw net.Conn) *Conn {
	config = config.withDefaults()
	c := newConn(config, &socketTransport{socket: rw})
	go c.readPump(rw)
	return c
}

func (c *Conn) readPump(socket net.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := socket.Read(buf)
		if n > 0 {
			c.Feed(buf[:n])
		}
		if err != nil {
			c.fail(err)
			return
		}
	}
}

func (c *Conn) wsReadPump(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		// frames carry single lines without terminators
		c.Feed(append(data, '\r', '\n'))
	}
}

func (c *Conn) fail(err error) {
	c.errMu.Lock()
	if c.lastErr == nil {
		c.lastErr = err
	}
	c.errMu.Unlock()
	c.Close()
}

// Err returns the first transport error observed, if any.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.lastErr
}

// Done is closed when the connection has ended, whether by Close or by a
// transport error.
func (c *Conn) Done() <-chan struct{} {
	return c.end
}

// Send assembles and sends a command with parameters.
func (c *Conn) Send(command string, params ...string) error {
	return c.SendWithTags(nil, command, params...)
}

// SendWithTags assembles and sends a command with message tags.
func (c *Conn) SendWithTags(tags map[string]string, command string, params ...string) error {
	msg := ircmsg.MakeMessage(tags, "", command, params...)
	line, err := msg.Line()
	if err != nil {
		return err
	}
	return c.SendRaw(strings.TrimSuffix(line, "\r\n"))
}

// SendRaw sends one line verbatim; the terminator is appended by the
// transport.
func (c *Conn) SendRaw(line string) error {
	select {
	case <-c.end:
		return ErrClosed
	default:
	}

	c.config.Logger.WithField("dir", "out").Debug(line)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.trans.writeLine(line, time.Now().Add(c.config.Timeout))
}

// Close shuts the transport down. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.end)
		err = c.trans.close()
	})
	return err
}

type socketTransport struct {
	socket net.Conn
}

func (t *socketTransport) writeLine(line string, deadline time.Time) error {
	t.socket.SetWriteDeadline(deadline)
	defer t.socket.SetWriteDeadline(time.Time{})
	_, err := t.socket.Write([]byte(line + "\r\n"))
	return err
}

func (t *socketTransport) close() error {
	return t.socket.Close()
}

type wsTransport struct {
	ws *websocket.Conn
}

func (t *wsTransport) writeLine(line string, deadline time.Time) error {
	t.ws.SetWriteDeadline(deadline)
	return t.ws.WriteMessage(websocket.TextMessage, []byte(line))
}

func (t *wsTransport) close() error {
	return t.ws.Close()
}
