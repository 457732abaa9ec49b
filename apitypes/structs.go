package apitypes

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ApiError represents an RFC 7807 (problem+json) error response.
type ApiError struct {
	// Status is the HTTP-style status code (e.g., 400, 404, 500)
	Status int `json:"status"`
	// Title is a short, human-readable summary of the problem type
	Title string `json:"title"`
	// Detail is a human-readable explanation specific to this occurrence
	Detail string `json:"detail"`
}

func (e ApiError) Error() string {
	if e.Status == 0 && e.Title == "" {
		return "unknown error"
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Detail)
}

// --

type PingResponse struct {
	Server  string `json:"server"`
	Version string `json:"version"`
}

// Names is an RMLVO tuple; empty fields take the server's defaults.
type Names struct {
	Rules   string `json:"rules,omitempty"`
	Model   string `json:"model,omitempty"`
	Layout  string `json:"layout,omitempty"`
	Variant string `json:"variant,omitempty"`
	Options string `json:"options,omitempty"`
}

// SeatCreateRequest creates a seat either from names or from keymap text.
// Setting both is an error.
type SeatCreateRequest struct {
	Names  *Names `json:"names,omitempty"`
	Keymap string `json:"keymap,omitempty"`
}

// UnmarshalJSON also accepts the names inline, as in {"layout":"us,ru"},
// and a bare layout string such as "de".
func (r *SeatCreateRequest) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var layout string
		if err := json.Unmarshal(data, &layout); err != nil {
			return err
		}
		*r = SeatCreateRequest{Names: &Names{Layout: layout}}
		return nil
	}

	var raw struct {
		Names  *Names `json:"names,omitempty"`
		Keymap string `json:"keymap,omitempty"`
		inlineNames
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Keymap = raw.Keymap
	r.Names = raw.Names
	if inline := Names(raw.inlineNames); r.Names == nil && inline != (Names{}) {
		r.Names = &inline
	}
	return nil
}

type inlineNames Names

type Seat struct {
	ID      uint32   `json:"id"`
	Names   *Names   `json:"names,omitempty"`
	Layouts []string `json:"layouts"`
	Digest  string   `json:"digest"`
}

type SeatListResponse struct {
	Seats []Seat `json:"seats"`
}

type SeatRemoveResponse struct {
	ID uint32 `json:"id"`
}

// SeatKeymapResponse carries a seat's keymap text and its blake2b-256 hex
// digest.
type SeatKeymapResponse struct {
	ID     uint32 `json:"id"`
	Keymap string `json:"keymap"`
	Digest string `json:"digest"`
}

// ModifiersEvent is the serialized state of a seat. Changed holds the
// state component bits the event changed.
type ModifiersEvent struct {
	Serial          uint64 `json:"serial"`
	Changed         uint32 `json:"changed"`
	DepressedMods   uint32 `json:"depressedMods"`
	LatchedMods     uint32 `json:"latchedMods"`
	LockedMods      uint32 `json:"lockedMods"`
	EffectiveMods   uint32 `json:"effectiveMods"`
	DepressedLayout int32  `json:"depressedLayout"`
	LatchedLayout   int32  `json:"latchedLayout"`
	LockedLayout    int32  `json:"lockedLayout"`
	EffectiveLayout uint32 `json:"effectiveLayout"`
	LEDs            uint32 `json:"leds"`
}

type SeatKeyResponse struct {
	Keycode uint32         `json:"keycode"`
	Changed []string       `json:"changed"`
	Event   ModifiersEvent `json:"event"`
}
