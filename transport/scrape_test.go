package transport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const liveCallsPage = `
<html><head><style>.x{}</style><script>var a=1;</script></head>
<body>
  <div class="header">Live</div>
  <div class="calls">
    <div class="call">
      Incoming call from +1 555 0100
      <a href="https://hub.example.com/rec/100.mp3">recording</a>
    </div>
    <div class="call">Incoming call from +1 555 0199</div>
  </div>
  <p>Inline recording at https://hub.example.com/rec/300.ogg for case 300</p>
</body></html>`

func TestExtractBlocks(t *testing.T) {
	t.Parallel()

	blocks, err := ExtractBlocks(strings.NewReader(liveCallsPage))
	require.NoError(t, err)
	require.Len(t, blocks, 4)

	require.Equal(t, "Live", blocks[0].Text)
	require.Empty(t, blocks[0].AudioURL)

	require.Contains(t, blocks[1].Text, "Incoming call from +1 555 0100")
	require.Equal(t, "https://hub.example.com/rec/100.mp3", blocks[1].AudioURL)

	require.Contains(t, blocks[2].Text, "+1 555 0199")
	require.Empty(t, blocks[2].AudioURL)

	require.Contains(t, blocks[3].Text, "case 300")
	require.Equal(t, "https://hub.example.com/rec/300.ogg", blocks[3].AudioURL)
}

func TestExtractBlocksReturnsInnermostBlocks(t *testing.T) {
	t.Parallel()

	page := `<div class="outer"><div class="inner">Incoming call detail row</div></div>`
	blocks, err := ExtractBlocks(strings.NewReader(page))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Equal(t, "Incoming call detail row", blocks[0].Text)
}

func TestExtractBlocksSkipsScriptAndStyle(t *testing.T) {
	t.Parallel()

	page := `<div><script>shouldNotAppear()</script>Visible call text here</div>`
	blocks, err := ExtractBlocks(strings.NewReader(page))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.NotContains(t, blocks[0].Text, "shouldNotAppear")
}

func TestAudioURLPattern(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"https://h.example.com/a.mp3", "https://h.example.com/a.mp3"},
		{"see https://h.example.com/b.ogg now", "https://h.example.com/b.ogg"},
		{"https://h.example.com/c.m4a", "https://h.example.com/c.m4a"},
		{"https://h.example.com/d.wav", ""},
		{"no url here", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, audioURLRe.FindString(tc.in), "input: %s", tc.in)
	}
}
