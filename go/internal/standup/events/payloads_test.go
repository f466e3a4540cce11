package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
		check   func(t *testing.T, msg *Inbound)
	}{
		{
			name:  "join",
			input: `{"type":"join","userId":"123"}`,
			check: func(t *testing.T, msg *Inbound) {
				assert.Equal(t, TypeJoin, msg.Type)
				assert.Equal(t, "123", *msg.UserID)
			},
		},
		{
			name:  "start without duration",
			input: `{"type":"start"}`,
			check: func(t *testing.T, msg *Inbound) {
				assert.Nil(t, msg.Duration)
			},
		},
		{
			name:  "popcorn",
			input: `{"type":"popcorn","x":0.5,"y":0}`,
			check: func(t *testing.T, msg *Inbound) {
				assert.Equal(t, 0.5, *msg.X)
				assert.Equal(t, 0.0, *msg.Y)
			},
		},
		{
			name:  "unknown type passes through",
			input: `{"type":"wave"}`,
			check: func(t *testing.T, msg *Inbound) {
				assert.Equal(t, Type("wave"), msg.Type)
			},
		},
		{name: "missing type", input: `{"userId":"1"}`, wantErr: ErrMissingType},
		{name: "join without user", input: `{"type":"join"}`, wantErr: ErrMissingField},
		{name: "leave with empty user", input: `{"type":"leave","userId":""}`, wantErr: ErrMissingField},
		{name: "popcorn without y", input: `{"type":"popcorn","x":1}`, wantErr: ErrMissingField},
		{
			name:  "start at the duration cap",
			input: `{"type":"start","duration":86400}`,
			check: func(t *testing.T, msg *Inbound) {
				assert.Equal(t, MaxDuration, *msg.Duration)
			},
		},
		{name: "start above the duration cap", input: `{"type":"start","duration":86401}`, wantErr: ErrInvalidField},
		{name: "start with overflowing duration", input: `{"type":"start","duration":36028797018963968}`, wantErr: ErrInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.input))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.input, string(msg.Raw))
			tt.check(t, msg)
		})
	}
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	for _, input := range []string{``, `nope`, `[1,2]`, `{"type":"start","duration":1.5}`} {
		_, err := Decode([]byte(input))
		assert.Error(t, err, input)
	}
}

func TestStateViewEncodesNulls(t *testing.T) {
	data, err := json.Marshal(StateMessage{Type: TypeState, State: StateView{Members: []string{}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"state","state":{"members":[],"startedAt":null,"duration":null,"isPaused":false,"pausedAt":null,"currentOffset":0}}`, string(data))
}
