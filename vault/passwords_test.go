package vault

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/sealvault-go/chain"
)

func TestPasswordVault_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	pv := NewPasswordVault(env.engine)
	ctx := context.Background()

	rec, err := pv.Add(ctx, "Gmail", "a@b.com", "p@ss", "master-1")
	require.NoError(t, err)
	assert.Equal(t, "Gmail", rec.Service)
	assert.Equal(t, "a@b.com", rec.Username)
	assert.NotEmpty(t, rec.Descriptor)
	assert.Equal(t, []Record{*rec}, pv.Records())

	got, err := env.engine.Retrieve(ctx, &RetrieveOpts{BlobID: rec.ID})
	require.NoError(t, err)
	assert.Regexp(t, `^password-Gmail-\d+\.enc$`, got.Identifier)
	assert.Equal(t, "password-entry", got.Tags["type"])
	assert.Equal(t, "Gmail", got.Tags["service"])
	assert.NotContains(t, string(got.Raw), "p@ss")

	entry, err := pv.Retrieve(ctx, " "+rec.ID+" ", "master-1")
	require.NoError(t, err)
	assert.Equal(t, "Gmail", entry.Service)
	assert.Equal(t, "a@b.com", entry.Username)
	assert.Equal(t, "p@ss", entry.Password)
	assert.Equal(t, rec.CreatedAt.UnixMilli(), entry.CreatedAt.UnixMilli())
}

func TestPasswordVault_WrongMaster(t *testing.T) {
	env := newTestEnv(t)
	pv := NewPasswordVault(env.engine)
	ctx := context.Background()

	rec, err := pv.Add(ctx, "Gmail", "a@b.com", "p@ss", "master-1")
	require.NoError(t, err)

	_, err = pv.Retrieve(ctx, rec.ID, "master-2")
	assert.ErrorIs(t, err, ErrDecryption)
	assert.Equal(t, KindDecryption, KindOf(err))
}

func TestPasswordVault_OlderRecordUsesImportedSession(t *testing.T) {
	env := newTestEnv(t)
	pv := NewPasswordVault(env.engine)
	ctx := context.Background()

	first, err := pv.Add(ctx, "Gmail", "a@b.com", "p@ss", "master")
	require.NoError(t, err)
	second, err := pv.Add(ctx, "GitHub", "octo", "hunter2", "master")
	require.NoError(t, err)
	assert.Len(t, pv.Records(), 2)

	entry, err := pv.Retrieve(ctx, first.ID, "master")
	require.NoError(t, err)
	assert.Equal(t, "p@ss", entry.Password)

	entry, err = pv.Retrieve(ctx, second.ID, "master")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", entry.Password)
}

func TestPasswordVault_Fallback(t *testing.T) {
	env := newTestEnv(t, withPrimitive(downPrimitive{}))
	pv := NewPasswordVault(env.engine)
	ctx := context.Background()

	rec, err := pv.Add(ctx, "Gmail", "a@b.com", "p@ss", "master")
	require.NoError(t, err)

	entry, err := pv.Retrieve(ctx, rec.ID, "master")
	require.NoError(t, err)
	assert.Equal(t, "p@ss", entry.Password)
}

func TestPasswordVault_Validation(t *testing.T) {
	env := newTestEnv(t)
	pv := NewPasswordVault(env.engine)
	ctx := context.Background()

	tests := []struct {
		name                                string
		service, username, password, master string
		want                                error
	}{
		{"no service", "", "u", "p", "m", ErrEmptyField},
		{"no username", "s", "", "p", "m", ErrEmptyField},
		{"no password", "s", "u", "", "m", ErrEmptyField},
		{"no master", "s", "u", "p", "", ErrNoMasterKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pv.Add(ctx, tt.service, tt.username, tt.password, tt.master)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, pv.Records())
	assert.Empty(t, env.chain.Receipts())

	_, err := pv.Retrieve(ctx, "bafkreigh2akiscaild", "")
	assert.ErrorIs(t, err, ErrNoMasterKey)
	_, err = pv.Retrieve(ctx, "bafkreigh2akiscaild", "master")
	assert.ErrorIs(t, err, ErrUnknownRecord)
}

func TestPasswordVault_NoRecordOnFailedUpload(t *testing.T) {
	env := newTestEnv(t)
	env.chain.Reject = func(tx *chain.Transaction) error {
		if tx.Kind == chain.KindCertifyBlob {
			return errors.New("certify rejected")
		}
		return nil
	}
	pv := NewPasswordVault(env.engine)

	rec, err := pv.Add(context.Background(), "Gmail", "a@b.com", "p@ss", "master")
	assert.Nil(t, rec)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Empty(t, pv.Records())
}

func TestPasswordVault_Busy(t *testing.T) {
	env := newTestEnv(t)
	pv := NewPasswordVault(env.engine)
	env.engine.busy.Store(true)

	_, err := pv.Add(context.Background(), "Gmail", "a@b.com", "p@ss", "master")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = pv.Retrieve(context.Background(), "bafkreigh2akiscaild", "master")
	assert.ErrorIs(t, err, ErrBusy)
}

func TestPasswordVault_Restore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := NewPasswordVault(env.engine).Add(ctx, "Gmail", "a@b.com", "p@ss", "master")
	require.NoError(t, err)

	pv := NewPasswordVault(env.engine)
	pv.Restore(*rec, *rec, Record{})
	require.Len(t, pv.Records(), 1)

	entry, err := pv.Retrieve(ctx, rec.ID, "master")
	require.NoError(t, err)
	assert.Equal(t, "p@ss", entry.Password)
}
