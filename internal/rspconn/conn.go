// Package rspconn defines the Connection capability the server receives
// packets from and sends replies to, decoupled from any particular
// transport. internal/conn provides a concrete net.Conn-backed
// implementation.
package rspconn

import "github.com/mablinov/riscv-gdbserver/internal/rsppkt"

// Connection is the framed byte-stream transport collaborator. It owns
// packet framing, checksumming, +/- acks and escaping; the server only
// ever sees whole packets.
type Connection interface {
	// Connect blocks until a client attaches. Returns false on
	// unrecoverable failure.
	Connect() bool
	Close()
	IsConnected() bool

	// GetPkt reads one packet into pkt. Returns false on EOF/error.
	GetPkt(pkt *rsppkt.Packet) bool
	// PutPkt sends pkt's current payload.
	PutPkt(pkt *rsppkt.Packet)

	// HaveBreak is a non-blocking peek for an out-of-band Ctrl-C byte.
	HaveBreak() bool
}
