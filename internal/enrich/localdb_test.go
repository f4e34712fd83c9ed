package enrich

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestDB(t *testing.T, withPolicies bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cmvp.db")

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	require.NoError(t, err)
	defer func() { require.NoError(t, db.Close()) }()

	_, err = db.Exec(`CREATE TABLE algorithms (certificate TEXT NOT NULL, algorithm TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO algorithms (certificate, algorithm) VALUES
		('100', 'SHA2-256'),
		('100', 'AES-CBC'),
		('101', 'ECDSA')`)
	require.NoError(t, err)

	if withPolicies {
		_, err = db.Exec(`CREATE TABLE security_policies (certificate TEXT NOT NULL, url TEXT NOT NULL)`)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO security_policies (certificate, url) VALUES
			('100', 'https://example.com/docs/140sp100.pdf')`)
		require.NoError(t, err)
	}

	return path
}

func TestOpenLocalDBMissingFile(t *testing.T) {
	_, err := OpenLocalDB(filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}

func TestLocalDBLookup(t *testing.T) {
	path := createTestDB(t, true)
	local, err := OpenLocalDB(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, local.Close()) }()

	t.Run("hit returns sorted algorithms and policy", func(t *testing.T) {
		detail, ok, err := local.Lookup(context.Background(), "100")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []string{"AES-CBC", "SHA2-256"}, detail.Algorithms)
		assert.Equal(t, "https://example.com/docs/140sp100.pdf", detail.SecurityPolicyURL)
	})

	t.Run("hit without a stored policy", func(t *testing.T) {
		detail, ok, err := local.Lookup(context.Background(), "101")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []string{"ECDSA"}, detail.Algorithms)
		assert.Empty(t, detail.SecurityPolicyURL)
	})

	t.Run("miss prompts a live fetch", func(t *testing.T) {
		_, ok, err := local.Lookup(context.Background(), "9999")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestLocalDBLookupWithoutPoliciesTable(t *testing.T) {
	path := createTestDB(t, false)
	local, err := OpenLocalDB(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, local.Close()) }()

	detail, ok, err := local.Lookup(context.Background(), "100")
	require.NoError(t, err, "the security_policies table is optional")
	require.True(t, ok)
	assert.Equal(t, []string{"AES-CBC", "SHA2-256"}, detail.Algorithms)
	assert.Empty(t, detail.SecurityPolicyURL)
}
