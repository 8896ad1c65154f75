package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestStatic(t *testing.T) {
	tok, err := Static("abc").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = Static("").Token(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestFileRereadsToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	src := File(path)

	_, err := src.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0o600))
	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", tok)

	require.NoError(t, os.WriteFile(path, []byte("second"), 0o600))
	tok, err = src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", tok)

	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))
	_, err = src.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestFromEnv(t *testing.T) {
	t.Run("static", func(t *testing.T) {
		t.Setenv("TABLECHAT_TOKEN", "env-token")
		t.Setenv("TABLECHAT_TOKEN_FILE", "")

		src, err := FromEnv()
		require.NoError(t, err)
		tok, err := src.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "env-token", tok)
	})

	t.Run("file wins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token")
		require.NoError(t, os.WriteFile(path, []byte("file-token"), 0o600))
		t.Setenv("TABLECHAT_TOKEN", "env-token")
		t.Setenv("TABLECHAT_TOKEN_FILE", path)

		src, err := FromEnv()
		require.NoError(t, err)
		tok, err := src.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "file-token", tok)
	})

	t.Run("unset", func(t *testing.T) {
		t.Setenv("TABLECHAT_TOKEN", "")
		t.Setenv("TABLECHAT_TOKEN_FILE", "")

		src, err := FromEnv()
		require.NoError(t, err)
		_, err = src.Token(context.Background())
		assert.ErrorIs(t, err, ErrNoToken)
	})
}

func TestJWTGuard(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	valid := signed(t, jwt.MapClaims{"sub": "u1", "exp": now.Add(time.Hour).Unix()})
	expired := signed(t, jwt.MapClaims{"sub": "u1", "exp": now.Add(-time.Minute).Unix()})
	withinLeeway := signed(t, jwt.MapClaims{"sub": "u1", "exp": now.Add(-2 * time.Second).Unix()})
	noExp := signed(t, jwt.MapClaims{"sub": "u1"})

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"valid", valid, nil},
		{"expired", expired, ErrTokenExpired},
		{"within leeway", withinLeeway, nil},
		{"no exp", noExp, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Guard(Static(tt.token))
			g.Now = func() time.Time { return now }

			tok, err := g.Token(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, tok)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.token, tok)
		})
	}
}

func TestJWTGuardPassesSourceErrors(t *testing.T) {
	_, err := Guard(Static("")).Token(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = Guard(Static("not-a-jwt")).Token(context.Background())
	assert.ErrorContains(t, err, "parse jwt")
}

func TestExpiresAt(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := ExpiresAt(signed(t, jwt.MapClaims{"exp": exp.Unix()}))
	require.NoError(t, err)
	assert.True(t, exp.Equal(got))

	got, err = ExpiresAt(signed(t, jwt.MapClaims{"sub": "u1"}))
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}
