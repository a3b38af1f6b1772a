package vm

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// maxPayload bounds how much a handler reads from one connection. Messages
// are short decimal integers; anything larger is not a valid message.
const maxPayload = 1024

// listen accepts inbound connections until shutdown. Accept blocks at most
// acceptTimeout so the shutdown signal is observed with bounded latency.
func (v *VM) listen() {
	defer v.wg.Done()

	for {
		v.ln.SetDeadline(time.Now().Add(v.acceptTimeout))
		conn, err := v.ln.Accept()
		if err != nil {
			select {
			case <-v.ctx.Done():
				return
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			v.logs.Printf("[vm%d] accept error: %v", v.self.ID, err)
			continue
		}

		v.wg.Add(1)
		go v.handleConn(conn)
	}
}

// handleConn reads one message from an inbound connection. The message is the
// ASCII decimal encoding of the sender's clock value; end-of-stream is the
// only framing. Malformed payloads are dropped with an error-class log entry
// and never reach the processing queue.
func (v *VM) handleConn(conn net.Conn) {
	defer v.wg.Done()
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(v.readTimeout))
	data, err := io.ReadAll(io.LimitReader(conn, maxPayload))
	if err != nil {
		msg := fmt.Sprintf("failed to read message from %s: %v", conn.RemoteAddr(), err)
		v.logs.Printf("[vm%d] %s", v.self.ID, msg)
		v.events.Error(msg)
		return
	}

	payload := strings.TrimSpace(string(data))
	value, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || value < 0 {
		msg := fmt.Sprintf("dropped malformed payload %q from %s", payload, conn.RemoteAddr())
		v.logs.Printf("[vm%d] %s", v.self.ID, msg)
		v.events.Error(msg)
		return
	}

	v.netq.push(value)
}
