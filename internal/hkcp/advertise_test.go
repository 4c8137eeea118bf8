package hkcp

import (
	"reflect"
	"strings"
	"testing"
)

func TestEncodeDecodePacketRoundTrip(t *testing.T) {
	names := []string{"kitchen.light", "kitchen.temp", "garage.door"}
	packets := EncodePackets(MsgSink, ProtoHKCP, names)
	if len(packets) != 1 {
		t.Fatalf("expected a single packet for a short name list, got %d", len(packets))
	}

	msgType, proto, got, err := DecodePacket(packets[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msgType != MsgSink || proto != ProtoHKCP {
		t.Fatalf("header mismatch: type=%v proto=%v", msgType, proto)
	}
	if !reflect.DeepEqual(got, names) {
		t.Fatalf("names = %v, want %v", got, names)
	}
}

func TestEncodeSplitsOversizedNameLists(t *testing.T) {
	var names []string
	for i := 0; i < 200; i++ {
		names = append(names, strings.Repeat("x", 20))
	}

	packets := EncodePackets(MsgSource, ProtoHKCP, names)
	if len(packets) < 2 {
		t.Fatalf("expected the oversized name list to split into multiple packets, got %d", len(packets))
	}
	for _, p := range packets {
		if len(p) > MaxPacketLen {
			t.Fatalf("packet of %d bytes exceeds MaxPacketLen %d", len(p), MaxPacketLen)
		}
	}

	var total []string
	for _, p := range packets {
		_, _, names, err := DecodePacket(p)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		total = append(total, names...)
	}
	if len(total) != 200 {
		t.Fatalf("got %d names back across packets, want 200", len(total))
	}
}

func TestDecodeRejectsBadSignature(t *testing.T) {
	_, _, _, err := DecodePacket([]byte{0x00, 0x01, 0x01})
	if err == nil {
		t.Fatalf("expected an error for a bad signature byte")
	}
}
