package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRequiresBitcodeFiles(t *testing.T) {
	opt := DefaultOptions()
	opt.Entry = "main"
	require.Error(t, opt.Validate())
}

func TestValidateRequiresEntry(t *testing.T) {
	opt := DefaultOptions()
	opt.BitcodeFiles = []string{"a.bc"}
	require.Error(t, opt.Validate())
}

func TestValidateAcceptsCompleteOptions(t *testing.T) {
	opt := DefaultOptions()
	opt.BitcodeFiles = []string{"a.bc"}
	opt.Entry = "main"
	require.NoError(t, opt.Validate())
}

func TestVersionIsNonEmpty(t *testing.T) {
	require.NotEmpty(t, Version())
}
