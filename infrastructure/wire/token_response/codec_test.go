package token_response

import (
	"bytes"
	"errors"
	"net/netip"
	"reflect"
	"testing"
	"time"

	"avb/infrastructure/cryptography/connect_token"

	"github.com/fxamacker/cbor/v2"
)

func newToken(t *testing.T) *connect_token.Token {
	t.Helper()
	tok, err := connect_token.Generate(connect_token.Params{
		ClientID:        42,
		ServerAddresses: []netip.AddrPort{netip.MustParseAddrPort("203.0.113.5:16565")},
	}, [connect_token.KeySize]byte{9}, time.Unix(1_700_000_000, 0))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return tok
}

func tokenBytes(t *testing.T) []byte {
	t.Helper()
	b, err := newToken(t).MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func mustCBOR(t *testing.T, v any) []byte {
	t.Helper()
	b, err := cbor.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// rawMap encodes a CBOR map from already encoded key/value items, keeping
// duplicates and order exactly as given.
func rawMap(t *testing.T, items ...[]byte) []byte {
	t.Helper()
	if len(items)%2 != 0 || len(items)/2 > 23 {
		t.Fatal("rawMap needs key/value pairs")
	}
	out := []byte{0xa0 | byte(len(items)/2)}
	for _, item := range items {
		out = append(out, item...)
	}
	return out
}

func TestMarshalUnmarshal_RoundTrip(t *testing.T) {
	want := Response{GamePort: 16565, Token: newToken(t)}
	data, err := Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestMarshal_IsDeterministic(t *testing.T) {
	r := Response{GamePort: 7000, Token: newToken(t)}
	a, err := Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("encoding must be deterministic")
	}
}

func TestMarshal_RequiresToken(t *testing.T) {
	if _, err := Marshal(Response{GamePort: 1}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestUnmarshal_Rejects(t *testing.T) {
	tb := tokenBytes(t)
	port := mustCBOR(t, uint16(16565))
	tokens := mustCBOR(t, tb)
	gamePortKey := mustCBOR(t, "game_port")
	tokenBytesKey := mustCBOR(t, "token_bytes")

	tests := []struct {
		name  string
		in    []byte
		want  error
		field string
	}{
		{
			name:  "missing game_port",
			in:    mustCBOR(t, map[string]any{"token_bytes": tb}),
			want:  ErrMissingField,
			field: "game_port",
		},
		{
			name:  "missing token_bytes",
			in:    mustCBOR(t, map[string]any{"game_port": 16565}),
			want:  ErrMissingField,
			field: "token_bytes",
		},
		{
			name:  "duplicate game_port",
			in:    rawMap(t, gamePortKey, port, tokenBytesKey, tokens, gamePortKey, port),
			want:  ErrDuplicateField,
			field: "game_port",
		},
		{
			name:  "duplicate token_bytes",
			in:    rawMap(t, tokenBytesKey, tokens, gamePortKey, port, tokenBytesKey, tokens),
			want:  ErrDuplicateField,
			field: "token_bytes",
		},
		{
			name:  "unknown extra field",
			in:    mustCBOR(t, map[string]any{"game_port": 16565, "token_bytes": tb, "region": "eu"}),
			want:  ErrUnknownField,
			field: "region",
		},
		{
			name:  "wrong case field name",
			in:    mustCBOR(t, map[string]any{"Game_port": 16565, "token_bytes": tb}),
			want:  ErrUnknownField,
			field: "Game_port",
		},
		{
			name:  "garbled field name",
			in:    mustCBOR(t, map[string]any{"sssssssgame_port": 16565, "token_bytes": tb}),
			want:  ErrUnknownField,
			field: "sssssssgame_port",
		},
		{
			name:  "null game_port",
			in:    mustCBOR(t, map[string]any{"game_port": nil, "token_bytes": tb}),
			want:  ErrMissingField,
			field: "game_port",
		},
		{
			name:  "port overflow",
			in:    mustCBOR(t, map[string]any{"game_port": 70000, "token_bytes": tb}),
			want:  ErrMalformedRecord,
			field: "game_port",
		},
		{
			name:  "negative port",
			in:    mustCBOR(t, map[string]any{"game_port": -1, "token_bytes": tb}),
			want:  ErrMalformedRecord,
			field: "game_port",
		},
		{
			name:  "token as text",
			in:    mustCBOR(t, map[string]any{"game_port": 16565, "token_bytes": "abc"}),
			want:  ErrMalformedRecord,
			field: "token_bytes",
		},
		{
			name:  "oversized token",
			in:    mustCBOR(t, map[string]any{"game_port": 16565, "token_bytes": append(tb, 0)}),
			want:  ErrInvalidToken,
			field: "token_bytes",
		},
		{
			name:  "short token",
			in:    mustCBOR(t, map[string]any{"game_port": 16565, "token_bytes": tb[:100]}),
			want:  ErrInvalidToken,
			field: "token_bytes",
		},
		{
			name:  "bad token header",
			in:    mustCBOR(t, map[string]any{"game_port": 16565, "token_bytes": append([]byte("XXX"), tb[3:]...)}),
			want:  ErrInvalidToken,
			field: "token_bytes",
		},
		{
			name: "not a map",
			in:   mustCBOR(t, []int{1, 2}),
			want: ErrMalformedRecord,
		},
		{
			name: "null record",
			in:   mustCBOR(t, nil),
			want: ErrMalformedRecord,
		},
		{
			name: "truncated",
			in:   mustCBOR(t, map[string]any{"game_port": 16565, "token_bytes": tb})[:20],
			want: ErrMalformedRecord,
		},
		{
			name: "integer key",
			in:   rawMap(t, mustCBOR(t, 1), port, tokenBytesKey, tokens),
			want: ErrMalformedRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("expected *DecodeError, got %T", err)
			}
			if tt.field != "" && decodeErr.Field != tt.field {
				t.Fatalf("expected field %q, got %q", tt.field, decodeErr.Field)
			}
		})
	}
}

func TestResponse_GameAddress(t *testing.T) {
	r := Response{GamePort: 16570}
	got := r.GameAddress(netip.MustParseAddr("198.51.100.7"))
	if got != netip.MustParseAddrPort("198.51.100.7:16570") {
		t.Fatalf("unexpected game address %v", got)
	}
}
