package remote

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// WSDialer opens client websocket connections.  WriteTimeout, when set,
// bounds every frame written on them.
type WSDialer struct {
	Timeout      time.Duration
	WriteTimeout time.Duration
}

// Dial performs the websocket handshake with endpoint.
func (d WSDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	dialer := ws.Dialer{Timeout: d.Timeout}
	conn, br, _, err := dialer.Dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	c := &wsConn{conn: conn, r: conn, writeTimeout: d.WriteTimeout}
	// br holds frames the server sent right after the handshake.
	if br != nil {
		c.r = br
	}
	return c, nil
}

// wsConn is the client side of a websocket.  It implements io.ReadWriter
// so wsutil can answer control frames on it.
type wsConn struct {
	conn         net.Conn
	r            io.Reader
	writeTimeout time.Duration
	mu           sync.Mutex
}

func (c *wsConn) Read(p []byte) (int, error) { return c.r.Read(p) }

func (c *wsConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}
	return c.conn.Write(p)
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	return wsutil.ReadServerText(c)
}

// WriteMessage sends p as one masked text frame in a single write.
func (c *wsConn) WriteMessage(p []byte) error {
	var buf bytes.Buffer
	if err := wsutil.WriteClientText(&buf, p); err != nil {
		return err
	}
	_, err := c.Write(buf.Bytes())
	return err
}

func (c *wsConn) Close() error { return c.conn.Close() }
