package cmd

import (
	"bytes"
	"testing"

	"github.com/BitPonyLLC/weakevents/buildinfo"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, dump("name", &buf))
	require.NoError(t, dump("build", &buf))
	assert.Equal(t, buildinfo.App.Name+"\n"+buildinfo.All+"\n", buf.String())

	assert.Error(t, dump("nope", &buf))
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	require.NoError(t, writeYAML(cmd, demoStep{Step: "deliver", Hits: 3}))
	assert.Contains(t, buf.String(), "step: deliver\n")
	assert.Contains(t, buf.String(), "hits: 3\n")
	assert.NotContains(t, buf.String(), "sweep:")
}
