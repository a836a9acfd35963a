package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInterpolate(t *testing.T) {
	testCases := []struct {
		name     string
		tpl      string
		data     map[string]string
		expected string
	}{
		{
			name:     "filename",
			tpl:      "The download of {filename} was interrupted",
			data:     map[string]string{"filename": "report.pdf"},
			expected: "The download of report.pdf was interrupted",
		},
		{
			name:     "missing key is kept",
			tpl:      "{filename} from {host}",
			data:     map[string]string{"filename": "a.zip"},
			expected: "a.zip from {host}",
		},
		{
			name:     "escaped",
			tpl:      "Cannot save {{filename}}",
			data:     map[string]string{"filename": "<b>.txt"},
			expected: "Cannot save &lt;b&gt;.txt",
		},
		{
			name:     "repeated",
			tpl:      "{a}-{a}",
			data:     map[string]string{"a": "x"},
			expected: "x-x",
		},
		{
			name:     "value with braces is not expanded again",
			tpl:      "Cannot save {{filename}}",
			data:     map[string]string{"filename": "{filename}.txt"},
			expected: "Cannot save {filename}.txt",
		},
		{
			name:     "plain value with braces",
			tpl:      "{a} and {b}",
			data:     map[string]string{"a": "{b}", "b": "x"},
			expected: "{b} and x",
		},
		{
			name:     "no placeholders",
			tpl:      "Download Error",
			expected: "Download Error",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, Interpolate(tc.tpl, tc.data))
		})
	}
}
