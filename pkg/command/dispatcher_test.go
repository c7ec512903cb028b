//go:build unit

package command

import (
	"context"
	"errors"
	"testing"

	"github.com/hidio/hidio-core/pkg/packet"
)

func TestDispatchDataCommandAcks(t *testing.T) {
	d := NewDispatcher()
	RegisterTestHandler(d, func(ctx context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	})

	resp, err := d.Dispatch(context.Background(), packet.Packet{
		Type: packet.TypeData, ID: uint32(Test), Payload: []byte("ping"),
	})
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if resp == nil || resp.Type != packet.TypeAck {
		t.Fatalf("expected Ack response, got %+v", resp)
	}
	if string(resp.Payload) != "ping" {
		t.Errorf("ack payload = %q, want %q", resp.Payload, "ping")
	}
}

func TestDispatchUnsupportedCommandNaks(t *testing.T) {
	d := NewDispatcher()

	resp, err := d.Dispatch(context.Background(), packet.Packet{
		Type: packet.TypeData, ID: 0x1234,
	})
	if resp == nil || resp.Type != packet.TypeNak {
		t.Fatalf("expected Nak response, got %+v", resp)
	}
	var cmdErr *Error
	if !errors.As(err, &cmdErr) || cmdErr.Kind != ErrKindNotSupported {
		t.Fatalf("expected ErrKindNotSupported, got %v", err)
	}
}

func TestDispatchNaDataNeverResponds(t *testing.T) {
	d := NewDispatcher()
	var gotText string
	RegisterUnicodeTextHandler(d, func(ctx context.Context, text string) error {
		gotText = text
		return nil
	})

	resp, err := d.Dispatch(context.Background(), packet.Packet{
		Type: packet.TypeNaData, ID: uint32(UnicodeText), Payload: []byte("hello"),
	})
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if resp != nil {
		t.Fatalf("NaData dispatch must never produce a response, got %+v", resp)
	}
	if gotText != "hello" {
		t.Errorf("handler received %q, want %q", gotText, "hello")
	}
}

func TestDispatchRejectsNonDataPacket(t *testing.T) {
	d := NewDispatcher()
	_, err := d.Dispatch(context.Background(), packet.Packet{Type: packet.TypeAck, ID: 1})
	var cmdErr *Error
	if !errors.As(err, &cmdErr) || cmdErr.Kind != ErrKindInvalidArgument {
		t.Fatalf("expected ErrKindInvalidArgument, got %v", err)
	}
}

func TestSupportedIDsReflectsRegistry(t *testing.T) {
	d := NewDispatcher()
	RegisterSupportedIDsHandler(d)
	RegisterTestHandler(d, func(ctx context.Context, payload []byte) ([]byte, error) { return payload, nil })
	RegisterInfoHandler(d, func(ctx context.Context, property InfoProperty) (string, error) { return "", nil })

	resp, err := d.Dispatch(context.Background(), packet.Packet{Type: packet.TypeData, ID: uint32(SupportedIDs)})
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	ids, err := ParseSupportedIDsAck(resp.Payload)
	if err != nil {
		t.Fatalf("ParseSupportedIDsAck error: %v", err)
	}

	want := map[ID]bool{SupportedIDs: true, Test: true, Info: true}
	if len(ids) != len(want) {
		t.Fatalf("got %d supported ids, want %d", len(ids), len(want))
	}
	for _, id := range ids {
		if !want[id] {
			t.Errorf("unexpected id in SupportedIDs: %v", id)
		}
	}
}

func TestInfoHandlerRoundTrip(t *testing.T) {
	d := NewDispatcher()
	RegisterInfoHandler(d, func(ctx context.Context, property InfoProperty) (string, error) {
		if property == InfoPropOSType {
			return "linux", nil
		}
		return "", nil
	})

	req := PackInfoRequest(InfoRequest{Property: InfoPropOSType})
	resp, err := d.Dispatch(context.Background(), packet.Packet{Type: packet.TypeData, ID: uint32(Info), Payload: req})
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	ack, err := ParseInfoAck(resp.Payload)
	if err != nil {
		t.Fatalf("ParseInfoAck error: %v", err)
	}
	if ack.Property != InfoPropOSType || ack.Value != "linux" {
		t.Errorf("got %+v, want {OSType linux}", ack)
	}
}

func TestUnregisterRemovesHandler(t *testing.T) {
	d := NewDispatcher()
	RegisterTestHandler(d, func(ctx context.Context, payload []byte) ([]byte, error) { return payload, nil })
	d.Unregister(Test)

	resp, _ := d.Dispatch(context.Background(), packet.Packet{Type: packet.TypeData, ID: uint32(Test)})
	if resp.Type != packet.TypeNak {
		t.Fatalf("expected Nak after Unregister, got %+v", resp)
	}
}
