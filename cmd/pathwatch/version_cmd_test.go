package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathwatch/internal/version"
)

func TestVersionCmdPrintsDetailedVersion(t *testing.T) {
	cmd := newVersionCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)

	require.NoError(t, cmd.Execute())

	assert.Contains(t, buf.String(), version.Version)
	assert.Contains(t, buf.String(), version.Revision)
}
