package token_response

import (
	"errors"
	"fmt"
	"net/netip"
	"sort"

	"avb/infrastructure/cryptography/connect_token"

	"github.com/fxamacker/cbor/v2"
)

const (
	gamePortField   = "game_port"
	tokenBytesField = "token_bytes"
)

// Response tells a client which port the game server listens on and carries
// the token it must present there.
type Response struct {
	GamePort uint16
	Token    *connect_token.Token
}

// GameAddress combines the issuer host with the advertised game port.
func (r Response) GameAddress(host netip.Addr) netip.AddrPort {
	return netip.AddrPortFrom(host.Unmap(), r.GamePort)
}

type record struct {
	GamePort   uint16 `cbor:"game_port"`
	TokenBytes []byte `cbor:"token_bytes"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		IndefLength:      cbor.IndefLengthForbidden,
		MaxMapPairs:      16,
		MaxArrayElements: 16,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshal encodes r as a two-field CBOR map.
func Marshal(r Response) ([]byte, error) {
	if r.Token == nil {
		return nil, fmt.Errorf("token issuance response: %w", ErrInvalidToken)
	}
	tokenBytes, err := r.Token.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("token issuance response: %w: %w", ErrInvalidToken, err)
	}
	return encMode.Marshal(record{GamePort: r.GamePort, TokenBytes: tokenBytes})
}

// Unmarshal decodes a response. Field names are matched exactly; a record that
// is missing a field, repeats one or carries any other field is rejected.
func Unmarshal(data []byte) (Response, error) {
	var fields map[string]cbor.RawMessage
	if err := decMode.Unmarshal(data, &fields); err != nil {
		var dupErr *cbor.DupMapKeyError
		if errors.As(err, &dupErr) {
			return Response{}, newDecodeError(fmt.Sprint(dupErr.Key), ErrDuplicateField)
		}
		return Response{}, newDecodeError("", fmt.Errorf("%w: %w", ErrMalformedRecord, err))
	}
	if fields == nil {
		return Response{}, newDecodeError("", ErrMalformedRecord)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		rec                  record
		seenPort, seenTokens bool
	)
	for _, name := range names {
		raw := fields[name]
		switch name {
		case gamePortField:
			if isNull(raw) {
				return Response{}, newDecodeError(name, ErrMissingField)
			}
			if err := decMode.Unmarshal(raw, &rec.GamePort); err != nil {
				return Response{}, newDecodeError(name, fmt.Errorf("%w: %w", ErrMalformedRecord, err))
			}
			seenPort = true
		case tokenBytesField:
			if isNull(raw) {
				return Response{}, newDecodeError(name, ErrMissingField)
			}
			if len(raw) == 0 || raw[0]>>5 != cborByteString {
				return Response{}, newDecodeError(name, fmt.Errorf("%w: expected byte string", ErrMalformedRecord))
			}
			if err := decMode.Unmarshal(raw, &rec.TokenBytes); err != nil {
				return Response{}, newDecodeError(name, fmt.Errorf("%w: %w", ErrMalformedRecord, err))
			}
			seenTokens = true
		default:
			return Response{}, newDecodeError(name, ErrUnknownField)
		}
	}
	if !seenPort {
		return Response{}, newDecodeError(gamePortField, ErrMissingField)
	}
	if !seenTokens {
		return Response{}, newDecodeError(tokenBytesField, ErrMissingField)
	}

	if len(rec.TokenBytes) > connect_token.Size {
		return Response{}, newDecodeError(tokenBytesField, fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidToken, len(rec.TokenBytes), connect_token.Size))
	}
	token, err := connect_token.Parse(rec.TokenBytes)
	if err != nil {
		return Response{}, newDecodeError(tokenBytesField, fmt.Errorf("%w: %w", ErrInvalidToken, err))
	}
	return Response{GamePort: rec.GamePort, Token: token}, nil
}

const (
	cborByteString = 2
	cborNull       = 0xf6
	cborUndefined  = 0xf7
)

func isNull(raw cbor.RawMessage) bool {
	return len(raw) == 1 && (raw[0] == cborNull || raw[0] == cborUndefined)
}
