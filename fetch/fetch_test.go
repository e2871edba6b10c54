package fetch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanXML(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "declaration stripped",
			in:   `<?xml version="1.0" encoding="UTF-8"?><MD_Metadata/>`,
			want: `<MD_Metadata/>`,
		},
		{
			name: "declaration and leading whitespace",
			in:   "\n  <?xml version=\"1.0\"?>\n<MD_Metadata/>",
			want: `<MD_Metadata/>`,
		},
		{
			name: "garbage before first element",
			in:   "junk preamble<MD_Metadata/>",
			want: `<MD_Metadata/>`,
		},
		{
			name: "already clean",
			in:   `<MD_Metadata/>`,
			want: `<MD_Metadata/>`,
		},
		{
			name: "no element at all",
			in:   "plain text",
			want: "plain text",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, string(CleanXML([]byte(tc.in))))
		})
	}
}

func TestFetchLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.xml")
	require.NoError(t, os.WriteFile(path,
		[]byte(`<?xml version="1.0"?><MD_Metadata><fileIdentifier/></MD_Metadata>`), 0o644))

	f := New(DefaultTimeout)
	content, err := f.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, `<MD_Metadata><fileIdentifier/></MD_Metadata>`, string(content))
}

func TestFetchEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.xml")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	f := New(DefaultTimeout)
	_, err := f.Fetch(context.Background(), path)
	assert.Error(t, err)
}

func TestFetchMissingFile(t *testing.T) {
	f := New(DefaultTimeout)
	_, err := f.Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.xml"))
	assert.Error(t, err)
}
