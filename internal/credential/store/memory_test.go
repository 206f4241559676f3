package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privid/internal/credential/models"
	dErrors "privid/pkg/domain-errors"
)

const memSubject = "did:pid:testnet:0123456789abcdef0123456789abcdef"

func memCredential(id string, purpose models.Type) *models.Credential {
	issuedAt := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	return &models.Credential{
		Context:        []string{"https://www.w3.org/2018/credentials/v1"},
		ID:             id,
		Type:           []string{models.BaseType, string(purpose)},
		Issuer:         "did:pid:testnet:ffffffffffffffffffffffffffffffff",
		IssuanceDate:   issuedAt,
		ExpirationDate: issuedAt.AddDate(1, 0, 0),
		Subject: map[string]any{
			"id":       memSubject,
			"isPerson": true,
		},
	}
}

func TestMemoryPut(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, memCredential("cred-1", models.TypePersonhood)))

	err := st.Put(ctx, memCredential("cred-1", models.TypePersonhood))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestMemoryGet(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, memCredential("cred-1", models.TypeAge)))

	got, err := st.Get(ctx, "cred-1")
	require.NoError(t, err)
	assert.Equal(t, "cred-1", got.ID)
	assert.Equal(t, models.TypeAge, got.PurposeType())

	_, err = st.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, memCredential("cred-1", models.TypeAge)))

	first, err := st.Get(ctx, "cred-1")
	require.NoError(t, err)
	first.Subject["isPerson"] = false
	first.Type[0] = "tampered"

	second, err := st.Get(ctx, "cred-1")
	require.NoError(t, err)
	assert.Equal(t, true, second.Subject["isPerson"])
	assert.Equal(t, models.BaseType, second.Type[0])
}

func TestMemoryListBySubject(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	purposes := []models.Type{models.TypePersonhood, models.TypeAge, models.TypeAntiSybil}
	for i, purpose := range purposes {
		require.NoError(t, st.Put(ctx, memCredential(fmt.Sprintf("cred-%d", i), purpose)))
	}

	creds, err := st.ListBySubject(ctx, memSubject)
	require.NoError(t, err)
	require.Len(t, creds, len(purposes))
	for i, cred := range creds {
		assert.Equal(t, purposes[i], cred.PurposeType())
	}

	other, err := st.ListBySubject(ctx, "did:pid:testnet:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, err)
	assert.Empty(t, other)
}
