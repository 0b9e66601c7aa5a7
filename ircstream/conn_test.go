// Copyright (c) 2024 AfterNET development team
// released under the MIT license

package ircstream

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeConn(t *testing.T, config Config) (*Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	c := NewConn(config, client)
	t.Cleanup(func() {
		c.Close()
		server.Close()
	})
	return c, server
}

func TestConnSendAndWait(t *testing.T) {
	c, server := pipeConn(t, Config{Server: "pipe"})
	reader := bufio.NewReader(server)

	go func() {
		server.Write([]byte(":irc.example.net 001 tester :Welcome to the network\r\n"))
	}()

	msg, err := c.WaitForMessage(MatchCommand("001"), waitLong)
	require.NoError(t, err)
	assert.Equal(t, "irc.example.net", msg.Prefix)

	require.NoError(t, c.Send("JOIN", "#chan"))
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "JOIN #chan\r\n", line)
}

func TestConnSendWithTags(t *testing.T) {
	c, server := pipeConn(t, Config{Server: "pipe"})
	reader := bufio.NewReader(server)

	require.NoError(t, c.SendWithTags(map[string]string{"label": "x"},
		"PRIVMSG", "#chan", "hello world"))
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "@label=x PRIVMSG #chan :hello world\r\n", line)
}

func TestConnAutoPong(t *testing.T) {
	_, server := pipeConn(t, Config{Server: "pipe"})
	reader := bufio.NewReader(server)

	_, err := server.Write([]byte("PING :keepalive-token\r\n"))
	require.NoError(t, err)

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "PONG keepalive-token\r\n", line)
}

func TestConnAutoPongDisabled(t *testing.T) {
	c, server := pipeConn(t, Config{Server: "pipe", DisableAutoPong: true})

	_, err := server.Write([]byte("PING :token\r\n"))
	require.NoError(t, err)

	// the PING is logged like any other message, but nothing is written back
	msg, err := c.WaitForMessage(MatchCommand("PING"), waitLong)
	require.NoError(t, err)
	assert.Equal(t, "token", msg.Trailing())

	server.SetReadDeadline(time.Now().Add(waitShort))
	buf := make([]byte, 1)
	_, err = server.Read(buf)
	assert.Error(t, err, "no PONG expected")
}

func TestConnClose(t *testing.T) {
	c, _ := pipeConn(t, Config{Server: "pipe"})

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "Close is idempotent")

	select {
	case <-c.Done():
	default:
		t.Fatal("Done must be closed after Close")
	}

	assert.ErrorIs(t, c.SendRaw("QUIT"), ErrClosed)
}

func TestConnPeerDisconnect(t *testing.T) {
	c, server := pipeConn(t, Config{Server: "pipe"})

	server.Write([]byte(":irc.example.net ERROR :Closing Link\r\n"))
	server.Close()

	select {
	case <-c.Done():
	case <-time.After(waitLong):
		t.Fatal("Done must close when the peer disconnects")
	}
	assert.Error(t, c.Err())

	// history fed before the disconnect is still waitable
	msg, err := c.WaitForMessage(MatchCommand("ERROR"), waitShort)
	require.NoError(t, err)
	assert.Equal(t, "Closing Link", msg.Trailing())
}

func TestDialWebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	gotPong := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		ws.WriteMessage(websocket.TextMessage, []byte("PING :ws-token"))
		_, reply, err := ws.ReadMessage()
		if err != nil {
			return
		}
		gotPong <- string(reply)
		ws.WriteMessage(websocket.TextMessage, []byte(":irc.example.net 001 tester :Welcome"))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, err := DialWebSocket(Config{Server: url}, url, nil)
	require.NoError(t, err)
	defer c.Close()

	msg, err := c.WaitForMessage(MatchCommand("001"), waitLong)
	require.NoError(t, err)
	assert.Equal(t, "Welcome", msg.Trailing())

	select {
	case pong := <-gotPong:
		assert.Equal(t, "PONG ws-token", pong)
	case <-time.After(waitLong):
		t.Fatal("no PONG frame received")
	}
}

func TestDialRefused(t *testing.T) {
	// a listener that is immediately closed yields a dial error
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Dial(Config{Server: addr, Timeout: waitLong})
	assert.Error(t, err)
}
