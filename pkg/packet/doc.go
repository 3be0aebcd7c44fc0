// Package packet implements the datagram envelope that carries atoms between
// a client and a switcher.
//
// Every datagram starts with a 12-byte header. The first word packs five
// flag bits with an 11-bit length, so a packet is never longer than 2047
// bytes. Packets either carry an 8-byte control message (connect,
// disconnect and their replies) or a batch of atoms.
//
// # Handshake
//
//	client   Control Connect, random session id s (1..0x7fff), client id 0xb1
//	switcher Control ConnectAck{n} on s; the session id is now n|0x8000
//	client   Response ack of the ConnectAck on s, client id 0xd4
//	switcher full state dump on n|0x8000, ending with InCm
//
// Packet ids are 15 bits wide and wrap from 0x7fff to 0. Use Diff and After
// to compare them.
package packet
