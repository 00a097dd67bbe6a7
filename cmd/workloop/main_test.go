package main

import (
	"bytes"
	"errors"
	"flag"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Help_ReturnsErrHelpAndPrintsUsage(t *testing.T) {
	out := &bytes.Buffer{}
	err := run(out, []string{"-h"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, flag.ErrHelp))
	assert.Contains(t, out.String(), "Usage")
}

func TestRun_InvalidDuration_ReturnsError(t *testing.T) {
	out := &bytes.Buffer{}
	err := run(out, []string{"-duration=not-a-duration"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid -duration")
}

func TestRun_MissingProfile_ReturnsError(t *testing.T) {
	out := &bytes.Buffer{}
	err := run(out, []string{"-profile=/no/such/file.hcl", "-duration=1ms"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading profile")
}

func TestRun_FetchesFromLocalServerAndFinishes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	out := &bytes.Buffer{}
	err := run(out, []string{"-url=" + srv.URL, "-duration=20ms"})
	require.NoError(t, err)

	assert.True(t, strings.Contains(out.String(), "fetched") || strings.Contains(out.String(), "demo loop finished"))
}
