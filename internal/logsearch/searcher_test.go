package logsearch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticSearcherFiltersByKeyword(t *testing.T) {
	s := &StaticSearcher{Lines: []string{
		"Log line 245: Connection Refused",
		"Log line 246: Retrying...",
		"Log line 247: Webhook delivery timeout",
	}}

	lines, err := s.Search(context.Background(), []string{"webhook", "refused"})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "Connection Refused")
	require.Contains(t, lines[1], "Webhook")
}

func TestSearchNoKeywords(t *testing.T) {
	s := &StaticSearcher{Lines: []string{"anything"}}
	lines, err := s.Search(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestSearchCaseInsensitive(t *testing.T) {
	s := &StaticSearcher{Lines: []string{"ERROR: SSL HANDSHAKE failed"}}
	lines, err := s.Search(context.Background(), []string{"ssl handshake"})
	require.NoError(t, err)
	require.Len(t, lines, 1)
}
