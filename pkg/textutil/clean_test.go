package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	cases := map[string]string{
		"":                                  "",
		"  Calle 5 #12  ":                   "Calle 5 #12",
		"<b>ring twice</b>":                 "ring twice",
		"<script>alert(1)</script>leave it": "leave it",
		"Tom & Jerry":                       "Tom & Jerry",
		"O'Higgins 5 > 3":                   "O'Higgins 5 > 3",
	}
	for in, want := range cases {
		assert.Equal(t, want, Clean(in), "input %q", in)
	}
}

func TestCleanDecodesEncodedMarkupBeforeStripping(t *testing.T) {
	assert.Equal(t, "hi", Clean("&lt;b&gt;hi&lt;/b&gt;"))
	assert.Equal(t, "x", Clean("&amp;lt;i&amp;gt;x&amp;lt;/i&amp;gt;"))
	assert.Equal(t, "ok", Clean("&lt;script&gt;alert(1)&lt;/script&gt;ok"))
}

func TestCleanNeverReturnsMarkup(t *testing.T) {
	for _, in := range []string{
		"&lt;img src=x onerror=alert(1)&gt;",
		"&#60;b&#62;bold&#60;/b&#62;",
		"&amp;amp;lt;b&amp;amp;gt;deep",
	} {
		out := Clean(in)
		assert.NotContains(t, out, "<", "input %q", in)
	}
}
