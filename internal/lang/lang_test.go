package lang

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext  string
		want string
	}{
		{".py", "python"},
		{".go", ""},
		{".js", ""},
		{"", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.ext, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ForExtension(tt.ext))
		})
	}
}

func TestLanguagesRegistered(t *testing.T) {
	t.Parallel()

	py, ok := Languages["python"]
	require.True(t, ok, "python language not registered")
	assert.NotNil(t, py.lang)
	assert.Same(t, Python, py)
}

func TestParseValid(t *testing.T) {
	t.Parallel()

	tree, err := Python.Parse(context.Background(), []byte("def f():\n    return 1\n"))
	require.NoError(t, err)
	defer tree.Close()

	assert.Equal(t, "module", tree.RootNode().Type())
}

func TestParseSyntaxError(t *testing.T) {
	t.Parallel()

	_, err := Python.Parse(context.Background(), []byte("def broken(:\n    pass\n"))
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestParseInvalidUTF8(t *testing.T) {
	t.Parallel()

	_, err := Python.Parse(context.Background(), []byte{'d', 'e', 'f', ' ', 0xff, 0xfe})
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestFindFunctionAt(t *testing.T) {
	t.Parallel()

	source := []byte(`class Store:
    def save(self):
        pass


async def fetch():
    pass
`)
	tree, err := Python.Parse(context.Background(), source)
	require.NoError(t, err)
	defer tree.Close()

	save := FindFunctionAt(tree.RootNode(), 2)
	require.NotNil(t, save)
	assert.Equal(t, "save", DefinitionName(save, source))
	assert.False(t, IsAsync(save))

	cls := EnclosingClass(save)
	require.NotNil(t, cls)
	assert.Equal(t, "Store", DefinitionName(cls, source))

	fetch := FindFunctionAt(tree.RootNode(), 6)
	require.NotNil(t, fetch)
	assert.True(t, IsAsync(fetch))
	assert.Nil(t, EnclosingClass(fetch))

	assert.Nil(t, FindFunctionAt(tree.RootNode(), 4))
}
