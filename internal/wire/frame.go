// Package wire decodes and encodes the push channel's protocol-buffer
// framing by hand, field number and wire type at a time, via
// google.golang.org/protobuf/encoding/protowire.
//
// The wire schema itself — PushFrame wrapping a gzip-compressed Response
// containing a list of {method, payload} Messages — is treated as an
// opaque fixed decoder: no .proto source is available to generate full
// message types from, so this package walks the known field numbers
// directly instead of depending on generated code.
package wire

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers for the outer PushFrame message.
const (
	fieldPayloadType   = 2
	fieldLogID         = 4
	fieldPayloadBytes  = 5
	fieldInternalExt   = 6
)

// Field numbers for the decompressed Response message.
const (
	fieldNeedAck       = 4
	fieldMessagesList  = 5
)

// Field numbers for one Message entry in messages_list.
const (
	fieldMessageMethod  = 1
	fieldMessagePayload = 2
)

// Frame is the decoded outer PushFrame.
type Frame struct {
	PayloadType string
	LogID       uint64
	Payload     []byte
	InternalExt []byte
}

// IsHeartbeat reports whether the frame is a server heartbeat (no payload
// to decompress).
func (f Frame) IsHeartbeat() bool { return f.PayloadType == "hb" }

// Response is the decompressed inner message.
type Response struct {
	NeedAck  bool
	Messages []Message
}

// Message is one {method, payload} entry inside a Response.
type Message struct {
	Method  string
	Payload []byte
}

// DecodeFrame walks the outer PushFrame's wire-format fields. Unknown
// fields are skipped rather than rejected, since the platform has
// historically added fields without a version bump.
func DecodeFrame(b []byte) (Frame, error) {
	var f Frame
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Frame{}, fmt.Errorf("wire: decode frame tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldPayloadType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Frame{}, fmt.Errorf("wire: decode payload_type: %w", protowire.ParseError(n))
			}
			f.PayloadType = v
			b = b[n:]
		case fieldLogID:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Frame{}, fmt.Errorf("wire: decode log_id: %w", protowire.ParseError(n))
			}
			f.LogID = v
			b = b[n:]
		case fieldPayloadBytes:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Frame{}, fmt.Errorf("wire: decode payload: %w", protowire.ParseError(n))
			}
			f.Payload = append([]byte(nil), v...)
			b = b[n:]
		case fieldInternalExt:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Frame{}, fmt.Errorf("wire: decode internal_ext: %w", protowire.ParseError(n))
			}
			f.InternalExt = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Frame{}, fmt.Errorf("wire: skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return f, nil
}

// DecodeResponse gunzips payload and walks the decompressed Response's
// fields.
func DecodeResponse(payload []byte) (Response, error) {
	raw, err := gunzip(payload)
	if err != nil {
		return Response{}, fmt.Errorf("wire: decompress response: %w", err)
	}

	var r Response
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return Response{}, fmt.Errorf("wire: decode response tag: %w", protowire.ParseError(n))
		}
		raw = raw[n:]

		switch num {
		case fieldNeedAck:
			v, n := protowire.ConsumeVarint(raw)
			if n < 0 {
				return Response{}, fmt.Errorf("wire: decode need_ack: %w", protowire.ParseError(n))
			}
			r.NeedAck = protowire.DecodeBool(v)
			raw = raw[n:]
		case fieldMessagesList:
			v, n := protowire.ConsumeBytes(raw)
			if n < 0 {
				return Response{}, fmt.Errorf("wire: decode message entry: %w", protowire.ParseError(n))
			}
			msg, err := decodeMessage(v)
			if err != nil {
				return Response{}, err
			}
			r.Messages = append(r.Messages, msg)
			raw = raw[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, raw)
			if n < 0 {
				return Response{}, fmt.Errorf("wire: skip response field %d: %w", num, protowire.ParseError(n))
			}
			raw = raw[n:]
		}
	}
	return r, nil
}

func decodeMessage(b []byte) (Message, error) {
	var m Message
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Message{}, fmt.Errorf("wire: decode message tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldMessageMethod:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Message{}, fmt.Errorf("wire: decode method: %w", protowire.ParseError(n))
			}
			m.Method = v
			b = b[n:]
		case fieldMessagePayload:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Message{}, fmt.Errorf("wire: decode message payload: %w", protowire.ParseError(n))
			}
			m.Payload = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Message{}, fmt.Errorf("wire: skip message field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return m, nil
}

func gunzip(b []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// EncodeAck builds the raw bytes for an ack PushFrame: payload_type="ack",
// the triggering frame's log_id, and its internal_ext echoed back as the
// ack payload.
func EncodeAck(logID uint64, internalExt []byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldPayloadType, protowire.BytesType)
	b = protowire.AppendString(b, "ack")
	b = protowire.AppendTag(b, fieldLogID, protowire.VarintType)
	b = protowire.AppendVarint(b, logID)
	if len(internalExt) > 0 {
		b = protowire.AppendTag(b, fieldPayloadBytes, protowire.BytesType)
		b = protowire.AppendBytes(b, internalExt)
	}
	return b
}

// EncodeHeartbeat builds the raw bytes for a client heartbeat PushFrame:
// payload_type="hb" and no payload.
func EncodeHeartbeat() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldPayloadType, protowire.BytesType)
	b = protowire.AppendString(b, "hb")
	return b
}
