package vm

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"clocksim/internal/registry"
)

// send delivers a clock value to one peer over a fresh connection: dial,
// write the decimal value, close. Fire-and-forget; no acknowledgment is
// awaited and no retry is attempted.
func (v *VM) send(peer registry.PeerDescriptor, value int64) error {
	conn, err := net.DialTimeout("tcp", peer.Addr, v.dialTimeout)
	if err != nil {
		return fmt.Errorf("failed to send to VM%d at %s: %v", peer.ID, peer.Addr, err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(v.dialTimeout))
	if _, err := conn.Write([]byte(strconv.FormatInt(value, 10))); err != nil {
		return fmt.Errorf("failed to write to VM%d at %s: %v", peer.ID, peer.Addr, err)
	}
	return nil
}
