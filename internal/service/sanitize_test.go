package service

import (
	"testing"

	"github.com/microcosm-cc/bluemonday"
	"github.com/stretchr/testify/require"
)

func TestPlainText(t *testing.T) {
	policy := bluemonday.StrictPolicy()

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "raw markup", input: `<img src=x onerror=alert(1)>`, want: ""},
		{name: "encoded markup", input: `&lt;img src=x onerror=alert(1)&gt;`, want: ""},
		{name: "double encoded markup", input: `&amp;lt;b&amp;gt;bold&amp;lt;/b&amp;gt;`, want: "bold"},
		{name: "apostrophe", input: `<b>it's</b> live`, want: "it's live"},
		{name: "ampersand", input: `Tom &amp; Jerry`, want: "Tom & Jerry"},
		{name: "comparison", input: `  a < b  `, want: "a < b"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := plainText(policy, tc.input)
			require.Equal(t, tc.want, got)
			require.NotContains(t, got, "<img")
		})
	}
}
