// Package hkcp implements the HAKit Connectivity Protocol: UDP
// peer advertising and a TCP line-oriented command channel, grounded
// on core/advertise.c, core/hkcp.c and core/hkcp_cmd.c.
package hkcp

import (
	"bytes"
	"fmt"
)

// MsgType is the second byte of every HKCP UDP advertising packet.
type MsgType byte

const (
	MsgSink    MsgType = 0x01
	MsgSource  MsgType = 0x02
	MsgMonitor MsgType = 0x03
	MsgRequest MsgType = 0x04
	MsgReply   MsgType = 0x05
)

// Signature is the fixed first byte of every advertising packet.
const Signature byte = 0xAC

// Protocol mask bits carried in the third header byte.
const (
	ProtoHKCP byte = 0x01
	ProtoMQTT byte = 0x02
)

// MaxPacketLen is the UDP payload size above which a name list is
// split across multiple self-contained packets, matching
// ADVERTISE_MAXLEN.
const MaxPacketLen = 1200

const headerLen = 3

// EncodePackets builds one or more advertising datagrams carrying
// names, splitting the list so no packet exceeds MaxPacketLen,
// matching hkcp's mid-loop flush-and-continue behavior.
func EncodePackets(msgType MsgType, proto byte, names []string) [][]byte {
	if len(names) == 0 {
		return [][]byte{header(msgType, proto)}
	}

	var packets [][]byte
	buf := header(msgType, proto)

	for _, name := range names {
		if len(buf)+len(name)+1 > MaxPacketLen && len(buf) > headerLen {
			packets = append(packets, buf)
			buf = header(msgType, proto)
		}
		buf = append(buf, name...)
		buf = append(buf, 0)
	}
	packets = append(packets, buf)
	return packets
}

func header(msgType MsgType, proto byte) []byte {
	return []byte{Signature, byte(msgType), proto}
}

// DecodePacket parses a received datagram into its type, protocol mask
// and NUL-separated name list.
func DecodePacket(data []byte) (msgType MsgType, proto byte, names []string, err error) {
	if len(data) < headerLen {
		return 0, 0, nil, fmt.Errorf("hkcp: packet too short (%d bytes)", len(data))
	}
	if data[0] != Signature {
		return 0, 0, nil, fmt.Errorf("hkcp: bad signature 0x%02x", data[0])
	}

	msgType = MsgType(data[1])
	proto = data[2]

	body := data[headerLen:]
	for len(body) > 0 {
		i := bytes.IndexByte(body, 0)
		if i < 0 {
			names = append(names, string(body))
			break
		}
		if i > 0 {
			names = append(names, string(body[:i]))
		}
		body = body[i+1:]
	}

	return msgType, proto, names, nil
}
