package main

import (
	"bytes"
	"testing"

	"github.com/alovak/terminal-playground/internal/protocol"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCardName(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"", ""},
		{"   ", ""},
		{"jane  doe", "JANE DOE"},
		{"  Alice\tSmith  ", "ALICE SMITH"},
		{"very very very very very long name here", "VERY VERY VERY VERY VERY L"},
	}
	for _, c := range cases {
		require.Equal(t, c.out, normalizeCardName(c.in), "normalizeCardName(%q)", c.in)
	}
}

func TestResolveProtocol(t *testing.T) {
	d, err := resolveProtocol("5")
	require.NoError(t, err)
	require.Equal(t, "POS Terminal -101.8 (PIN-LESS transaction)", d.Name)

	d, err = resolveProtocol("POS Terminal -201.1 (6-digit approval)")
	require.NoError(t, err)
	require.Equal(t, 6, d.Length)

	_, err = resolveProtocol("9")
	require.Error(t, err)

	_, err = resolveProtocol("POS Terminal -999")
	require.ErrorIs(t, err, protocol.ErrUnknown)
}

func TestParseSettings(t *testing.T) {
	settings := parseSettings([]string{"schedule=daily", "threshold=50", "enabled=true"})
	require.Equal(t, map[string]any{
		"schedule":  "daily",
		"threshold": float64(50),
		"enabled":   true,
	}, settings)
}

func TestFilterAuthCode(t *testing.T) {
	numeric, err := resolveProtocol("1")
	require.NoError(t, err)

	var out bytes.Buffer
	require.Equal(t, "1234", filterAuthCode(&out, numeric, "1234"))
	require.Empty(t, out.String())

	require.Equal(t, "12", filterAuthCode(&out, numeric, "1a2"))
	require.Contains(t, out.String(), "partial")
	require.Contains(t, out.String(), "4-digit code")

	out.Reset()
	alphanumeric, err := resolveProtocol("5")
	require.NoError(t, err)
	require.Equal(t, "", filterAuthCode(&out, alphanumeric, ""))
	require.Contains(t, out.String(), "empty")
	require.Contains(t, out.String(), "4-character code")
}
