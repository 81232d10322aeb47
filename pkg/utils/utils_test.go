package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanizeTime(t *testing.T) {
	t.Parallel()

	cases := []struct {
		seconds  float64
		expected string
	}{
		{seconds: 0, expected: "0s"},
		{seconds: 0.5, expected: "500ms"},
		{seconds: 1, expected: "1s"},
		{seconds: 65, expected: "1m 5s"},
		{seconds: 3661, expected: "1h 1m 1s"},
		{seconds: 86400, expected: "24h"},
	}

	for _, tc := range cases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, HumanizeTime(tc.seconds))
		})
	}
}

func TestMakeClickableLink(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "\u001b]8;;https://octo.github.dev\u0007octo\u001b]8;;\u0007", MakeClickableLink("https://octo.github.dev", "octo"))
	assert.Equal(t, "octo", MakeClickableLink("octo", ""))
	assert.Equal(t, "label", MakeClickableLink("ftp://x", "label"))
}

func TestParseVariables(t *testing.T) {
	t.Parallel()

	vars, err := ParseVariables([]string{"owner=octo", "first=10", "ratio=0.5", "draft=false", "after=null", "name:=123", "q=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"owner": "octo",
		"first": int64(10),
		"ratio": 0.5,
		"draft": false,
		"after": nil,
		"name":  "123",
		"q":     "a=b",
	}, vars)

	_, err = ParseVariables([]string{"novalue"})
	assert.Error(t, err)
	_, err = ParseVariables([]string{"=x"})
	assert.Error(t, err)
}
