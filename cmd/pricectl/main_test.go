package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"priceresolver/internal/cli"
)

func TestExitCode(t *testing.T) {
	require.Equal(t, 1, exitCode(&cli.MissingPricesError{Missing: 1, Requested: 2}))
	require.Equal(t, 1, exitCode(errors.Join(errors.New("wrapped"), &cli.MissingPricesError{})))
	require.Equal(t, 2, exitCode(errors.New("config: parse")))
}
