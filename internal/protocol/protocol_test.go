package protocol_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/protocol"
)

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

func TestDecodeEvent_WirePayload(t *testing.T) {
	t.Parallel()

	from, to, card := uuid.New(), uuid.New(), uuid.New()
	raw := fmt.Sprintf(`{"type":"card_moved","payload":{"from_list_id":%q,"to_list_id":%q,"card_id":%q,"position":2.5}}`,
		from, to, card)

	var body protocol.Body
	require.NoError(t, json.Unmarshal([]byte(raw), &body))

	ev, err := protocol.DecodeEvent(body)
	require.NoError(t, err)
	assert.Equal(t, domain.CardMoved{FromListID: from, ToListID: to, CardID: card, Position: 2.5}, ev)
}

func TestDecodeEvent_Renumbered(t *testing.T) {
	t.Parallel()

	list, a, b := uuid.New(), uuid.New(), uuid.New()
	body, err := protocol.EncodeEvent(domain.PositionsRenumbered{
		Parent:    domain.ListRef(list),
		Positions: map[uuid.UUID]float64{a: 1, b: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.EvPositionsRenumbered), body.Type)

	ev, err := protocol.DecodeEvent(body)
	require.NoError(t, err)
	got, ok := ev.(domain.PositionsRenumbered)
	require.True(t, ok)
	assert.Equal(t, domain.ListRef(list), got.Parent)
	assert.Equal(t, 2.0, got.Positions[b])
}

func TestDecodeEvent_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body protocol.Body
		want error
	}{
		{
			name: "unknown type",
			body: protocol.Body{Type: "card_exploded", Payload: json.RawMessage(`{}`)},
			want: domain.ErrUnknownEvent,
		},
		{
			name: "malformed payload",
			body: protocol.Body{Type: "list_moved", Payload: json.RawMessage(`{"list_id":`)},
			want: domain.ErrInvalidEvent,
		},
		{
			name: "wrong field type",
			body: protocol.Body{Type: "list_moved", Payload: json.RawMessage(`{"list_id":"x","position":"high"}`)},
			want: domain.ErrInvalidEvent,
		},
		{
			name: "missing identity",
			body: protocol.Body{Type: "card_deleted", Payload: json.RawMessage(`{"list_id":"` + uuid.NewString() + `"}`)},
			want: domain.ErrInvalidEvent,
		},
		{
			name: "missing payload",
			body: protocol.Body{Type: "list_renamed"},
			want: domain.ErrInvalidEvent,
		},
		{
			name: "renumber of a card",
			body: protocol.Body{
				Type:    "positions_renumbered",
				Payload: json.RawMessage(`{"parent":{"kind":"card","id":"` + uuid.NewString() + `"},"positions":{}}`),
			},
			want: domain.ErrInvalidEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ev, err := protocol.DecodeEvent(tt.body)
			require.Error(t, err)
			assert.Nil(t, ev)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEncodeEvent_Nil(t *testing.T) {
	t.Parallel()

	_, err := protocol.EncodeEvent(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func TestDecodeCommand(t *testing.T) {
	t.Parallel()

	list := uuid.New()
	tests := []struct {
		name    string
		body    protocol.Body
		want    domain.Command
		wantErr error
	}{
		{
			name: "create list",
			body: protocol.Body{Type: "create_list", Payload: json.RawMessage(`{"title":"Todo","position":1}`)},
			want: domain.CreateList{Title: "Todo", Position: 1},
		},
		{
			name: "renumber lists without payload",
			body: protocol.Body{Type: "renumber_lists"},
			want: domain.RenumberLists{},
		},
		{
			name: "renumber cards",
			body: protocol.Body{Type: "renumber_cards", Payload: json.RawMessage(`{"list_id":"` + list.String() + `"}`)},
			want: domain.RenumberCards{ListID: list},
		},
		{
			name:    "blank title",
			body:    protocol.Body{Type: "create_list", Payload: json.RawMessage(`{"title":"  ","position":1}`)},
			wantErr: domain.ErrInvalidCommand,
		},
		{
			name:    "unknown",
			body:    protocol.Body{Type: "drop_table"},
			wantErr: domain.ErrUnknownCommand,
		},
		{
			name:    "malformed",
			body:    protocol.Body{Type: "move_list", Payload: json.RawMessage(`[]`)},
			wantErr: domain.ErrInvalidCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := protocol.DecodeCommand(tt.body)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandFrame_Shape(t *testing.T) {
	t.Parallel()

	ws, list, card := uuid.New(), uuid.New(), uuid.New()
	f, err := protocol.CommandFrame(ws, domain.MoveCard{FromListID: list, CardID: card, ToListID: list, Position: 3})
	require.NoError(t, err)

	raw, err := json.Marshal(f)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Equal(t, "command", generic["kind"])
	assert.Equal(t, ws.String(), generic["workspace_id"])
	assert.NotEmpty(t, generic["ref"])
	assert.NotContains(t, generic, "status")
	assert.NotContains(t, generic, "seq")

	body, ok := generic["body"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "move_card", body["type"])
}

// ---------------------------------------------------------------------------
// Replies and error codes
// ---------------------------------------------------------------------------

func TestCodeOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want protocol.Code
	}{
		{fmt.Errorf("wrap: %w", domain.ErrNotFound), protocol.CodeNotFound},
		{domain.ErrConflict, protocol.CodeConflict},
		{fmt.Errorf("x: %w", domain.ErrInvalidCommand), protocol.CodeInvalid},
		{domain.ErrUnknownCommand, protocol.CodeInvalid},
		{protocol.ErrRateLimited, protocol.CodeRateLimited},
		{errors.New("disk on fire"), protocol.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, protocol.CodeOf(tt.err))
		})
	}
}

func TestReject_RoundTripsSentinel(t *testing.T) {
	t.Parallel()

	ref := uuid.New()
	f := protocol.Reject(ref, fmt.Errorf("service.Execute: %w", domain.ErrConflict))

	assert.Equal(t, protocol.KindReply, f.Kind)
	assert.Equal(t, ref, f.Ref)
	assert.Equal(t, protocol.StatusError, f.Status)
	assert.ErrorIs(t, f.Code.Sentinel(), domain.ErrConflict)
	assert.Contains(t, f.Error, "conflict")
	assert.NoError(t, protocol.CodeInternal.Sentinel())
}
