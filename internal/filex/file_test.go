package filex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/stretchr/testify/require"
)

func TestReadLimited_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staff.csv")
	require.NoError(t, os.WriteFile(path, []byte("username\nt01\n"), 0o600))

	b, err := ReadLimited(path, 64)
	require.NoError(t, err)
	require.Equal(t, "username\nt01\n", string(b))
}

func TestReadLimited_ExactlyAtLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("1234"), 0o600))

	b, err := ReadLimited(path, 4)
	require.NoError(t, err)
	require.Len(t, b, 4)
}

func TestReadLimited_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("12345"), 0o600))

	_, err := ReadLimited(path, 4)
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestReadLimited_Missing(t *testing.T) {
	_, err := ReadLimited(filepath.Join(t.TempDir(), "nope.xlsx"), 4)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestReadLimited_Directory(t *testing.T) {
	_, err := ReadLimited(t.TempDir(), 4)
	require.ErrorIs(t, err, common.ErrValidation)
}
