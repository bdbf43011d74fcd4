// Package turntable drives a Keigan motor turntable over a serial link.
//
// Frames are opcode, a two-byte identifier, a big-endian payload and a
// CRC-16. Only relative moves are used; no absolute position is tracked.
//
// The Driver writes through a Link, normally a *transport.Serial opened
// with OpenPort, so every command runs behind the transport's timeout
// boundary and every failure is fatal. Turntable commands are never retried.
package turntable
