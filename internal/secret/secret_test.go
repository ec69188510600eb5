package secret

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secretPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestGenerateFromReader(t *testing.T) {
	src := bytes.Repeat([]byte{0xab}, Size)
	got, err := Generate(bytes.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ab", Size), got)
}

func TestGenerateUniqueAndWellFormed(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		s, err := Generate(nil)
		require.NoError(t, err)
		require.Regexp(t, secretPattern, s)
		_, dup := seen[s]
		require.False(t, dup, "duplicate secret after %d runs", i)
		seen[s] = struct{}{}
	}
}

func TestGenerateShortRead(t *testing.T) {
	_, err := Generate(bytes.NewReader([]byte{0x01, 0x02}))
	assert.Error(t, err)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("entropy unavailable") }

func TestGenerateReaderError(t *testing.T) {
	_, err := Generate(errReader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entropy unavailable")
}

func TestRunWritesLine(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Run(&out, nil))
	line := out.String()
	require.True(t, strings.HasSuffix(line, "\n"), "expected trailing newline")
	assert.Regexp(t, secretPattern, strings.TrimSuffix(line, "\n"))
}

func TestRunNilOutput(t *testing.T) {
	assert.Error(t, Run(nil, nil))
}
