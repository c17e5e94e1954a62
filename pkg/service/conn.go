package service

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/raven-os/albinos/pkg/protocol"
	"github.com/raven-os/albinos/pkg/session"
	"github.com/raven-os/albinos/pkg/util"
)

// connection pairs a socket with its session. Replies and fan-out events
// share the stream, so writes go through a per-connection lock.
type connection struct {
	id   uint64
	svc  *Service
	conn net.Conn
	sess *session.Session
	wmu  sync.Mutex
	log  *logrus.Entry
}

func newConnection(svc *Service, id uint64, conn net.Conn) *connection {
	return &connection{
		id:   id,
		svc:  svc,
		conn: conn,
		sess: session.New(),
		log:  util.WithConn(id),
	}
}

// serve reads one JSON object at a time until the client disconnects.
// The decoder buffers partial objects and accepts concatenated ones, so
// clients may split or batch frames freely.
func (c *connection) serve() {
	defer c.svc.dropConnection(c)

	dec := json.NewDecoder(c.conn)
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			c.log.Warnf("unparseable request: %v", err)
			c.send(protocol.StateAnswer{State: protocol.StateInternalError})
			// A syntax error poisons the decoder; drop whatever it
			// buffered and start a fresh one on the stream.
			var syn *json.SyntaxError
			if errors.As(err, &syn) {
				io.Copy(io.Discard, dec.Buffered())
				dec = json.NewDecoder(c.conn)
				continue
			}
			return
		}
		c.svc.handle(c, raw)
	}
}

// send marshals v and writes it as one frame. Event delivery is best
// effort; write failures are logged and otherwise ignored, the read side
// will notice a dead peer.
func (c *connection) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Errorf("marshaling reply: %v", err)
		return
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.conn.Write(data); err != nil {
		c.log.Warnf("writing to client: %v", err)
	}
}
