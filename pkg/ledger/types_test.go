package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntityRef(t *testing.T) {
	tests := []struct {
		in      string
		want    EntityRef
		wantErr bool
	}{
		{in: "user:u1", want: EntityRef{Type: EntityUser, ID: "u1"}},
		{in: "org:acme:eu", want: EntityRef{Type: EntityOrg, ID: "acme:eu"}},
		{in: "system:treasury", want: EntityRef{Type: EntitySystem, ID: "treasury"}},
		{in: "user", wantErr: true},
		{in: "user:", wantErr: true},
		{in: "robot:r1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEntityRef(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestParseEntryType(t *testing.T) {
	for _, et := range EntryTypes {
		got, err := ParseEntryType(string(et))
		require.NoError(t, err)
		assert.Equal(t, et, got)
	}
	_, err := ParseEntryType("refund")
	assert.Error(t, err)
}

func TestDeltasFor(t *testing.T) {
	u1 := EntityRef{Type: EntityUser, ID: "u1"}
	u2 := EntityRef{Type: EntityUser, ID: "u2"}

	transfer := &Entry{Type: EntryTransfer, From: &u1, To: &u2, Amount: dec("5"), Currency: "ROADCOIN"}
	deltas := DeltasFor(transfer)
	require.Len(t, deltas, 2)
	assert.Equal(t, u1, deltas[0].Key.Entity)
	assert.True(t, deltas[0].Amount.Equal(dec("-5")))
	assert.Equal(t, u2, deltas[1].Key.Entity)
	assert.True(t, deltas[1].Amount.Equal(dec("5")))

	verification := &Entry{Type: EntryVerification, To: &u1, Amount: dec("0"), Currency: "ROADCOIN"}
	assert.Empty(t, DeltasFor(verification))
}

func TestEntryFilter(t *testing.T) {
	u1 := EntityRef{Type: EntityUser, ID: "u1"}
	u2 := EntityRef{Type: EntityUser, ID: "u2"}
	burn := &Entry{Type: EntryCreditBurn, From: &u1}
	grant := &Entry{Type: EntryCreditGrant, To: &u2}

	assert.True(t, EntryFilter{Entity: &u1}.Matches(burn))
	assert.False(t, EntryFilter{Entity: &u1}.Matches(grant))
	assert.True(t, EntryFilter{Entity: &u2, Type: EntryCreditGrant}.Matches(grant))
	assert.False(t, EntryFilter{Type: EntryCreditGrant}.Matches(burn))
	assert.True(t, EntryFilter{}.Matches(burn))

	n := EntryFilter{Limit: -3, Offset: -1}.Normalize()
	assert.Equal(t, DefaultListLimit, n.Limit)
	assert.Equal(t, 0, n.Offset)
}
