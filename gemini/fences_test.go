package gemini_test

import (
	"testing"

	"github.com/justuju/flowjudge/gemini"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFences(t *testing.T) {
	require.Equal(t, "print(1)",
		gemini.StripCodeFences("```python\nprint(1)\n```"))

	require.Equal(t, "print(1)",
		gemini.StripCodeFences("```\nprint(1)\n```"))

	// no fences: trimmed original
	require.Equal(t, "print(1)",
		gemini.StripCodeFences("  print(1)\n"))

	// surrounding prose survives, fences do not
	require.Equal(t, "Here you go:\nprint(1)",
		gemini.StripCodeFences("Here you go:\n```python\nprint(1)\n```\n"))

	require.Equal(t, "", gemini.StripCodeFences(""))
}
