package apitypes_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/goxkb/apitypes"
)

func TestSeatCreateRequestUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    apitypes.SeatCreateRequest
		wantErr bool
	}{
		{name: "bare layout", in: `"de"`, want: apitypes.SeatCreateRequest{Names: &apitypes.Names{Layout: "de"}}},
		{name: "inline names", in: `{"layout":"us,ru","options":"grp:toggle"}`,
			want: apitypes.SeatCreateRequest{Names: &apitypes.Names{Layout: "us,ru", Options: "grp:toggle"}}},
		{name: "names object", in: `{"names":{"model":"pc104","layout":"us"}}`,
			want: apitypes.SeatCreateRequest{Names: &apitypes.Names{Model: "pc104", Layout: "us"}}},
		{name: "names object wins", in: `{"names":{"layout":"de"},"layout":"us"}`,
			want: apitypes.SeatCreateRequest{Names: &apitypes.Names{Layout: "de"}}},
		{name: "keymap text", in: `{"keymap":"xkb_keymap {};"}`, want: apitypes.SeatCreateRequest{Keymap: "xkb_keymap {};"}},
		{name: "both kept for the server to reject", in: `{"layout":"us","keymap":"x"}`,
			want: apitypes.SeatCreateRequest{Names: &apitypes.Names{Layout: "us"}, Keymap: "x"}},
		{name: "empty object", in: `{}`, want: apitypes.SeatCreateRequest{}},
		{name: "broken", in: `{"layout":`, wantErr: true},
		{name: "number", in: `42`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got apitypes.SeatCreateRequest
			err := json.Unmarshal([]byte(tt.in), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApiErrorString(t *testing.T) {
	assert.Equal(t, "unknown error", apitypes.ApiError{}.Error())
	assert.Equal(t, "Bad Request: nope", apitypes.ApiError{Title: "Bad Request", Detail: "nope"}.Error())
	assert.Equal(t, "404 Not Found: seat 3 not found",
		apitypes.ApiError{Status: 404, Title: "Not Found", Detail: "seat 3 not found"}.Error())
}
