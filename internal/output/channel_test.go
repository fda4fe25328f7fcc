package output_test

import (
	"bytes"
	"testing"

	"github.com/dxmate/dxmate/internal/output"
	"github.com/stretchr/testify/require"
)

func TestChannel(t *testing.T) {
	var buf bytes.Buffer
	ch := output.NewChannel(&buf)
	require.Equal(t, "DX Mate", ch.Name())

	ch.AppendLine("Running: sf org open")
	n, err := ch.Write([]byte("partial "))
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, "Running: sf org open\n", buf.String())

	_, err = ch.Write([]byte("line\nnext"))
	require.NoError(t, err)
	require.Equal(t, "Running: sf org open\npartial line\n", buf.String())

	ch.Printf("Finished running: %s", "sf org open")
	require.Equal(t, "Running: sf org open\npartial line\nnext\nFinished running: sf org open\n", buf.String())

	ch.Flush()
	require.Equal(t, "Running: sf org open\npartial line\nnext\nFinished running: sf org open\n", buf.String())
}
