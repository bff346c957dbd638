package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPathValidator(t *testing.T) {
	_, err := NewPathValidator("")
	assert.Error(t, err)

	v, err := NewPathValidator("relative/dir")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(v.Root()))
}

func TestPathValidator_Resolve(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "credit.pdf"), []byte("%PDF"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.pdf"), []byte("%PDF"), 0o600))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.pdf"), filepath.Join(root, "link.pdf")))

	v, err := NewPathValidator(root)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"absolute inside", filepath.Join(root, "credit.pdf"), filepath.Join(root, "credit.pdf"), false},
		{"relative", "credit.pdf", filepath.Join(root, "credit.pdf"), false},
		{"not yet existing", "new/agreement.pdf", filepath.Join(root, "new", "agreement.pdf"), false},
		{"null bytes stripped", "credit\x00.pdf", filepath.Join(root, "credit.pdf"), false},
		{"root itself", root, root, false},
		{"traversal", "../" + filepath.Base(outside) + "/secret.pdf", "", true},
		{"absolute outside", filepath.Join(outside, "secret.pdf"), "", true},
		{"symlink escaping", filepath.Join(root, "link.pdf"), "", true},
		{"prefix sibling", root + "-other/x.pdf", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Resolve(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, v.ValidatePath(tt.path))
		})
	}
}

func TestPathValidator_OutsideRootError(t *testing.T) {
	v, err := NewPathValidator(t.TempDir())
	require.NoError(t, err)
	_, err = v.Resolve("/etc/passwd")
	assert.ErrorIs(t, err, ErrOutsideRoot)
}

func TestPathValidator_ValidateDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "file.pdf"), []byte("%PDF"), 0o600))
	v, err := NewPathValidator(root)
	require.NoError(t, err)

	dir, err := v.ValidateDirectory("")
	require.NoError(t, err)
	assert.Equal(t, v.Root(), dir)

	dir, err = v.ValidateDirectory("sub")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "sub"), dir)

	_, err = v.ValidateDirectory("missing")
	assert.NoError(t, err)

	_, err = v.ValidateDirectory("file.pdf")
	assert.Error(t, err)

	_, err = v.ValidateDirectory("/")
	assert.Error(t, err)
}
