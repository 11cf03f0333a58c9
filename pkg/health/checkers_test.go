package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(_ context.Context) error { return p.err }

func TestPingCheck(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, PingCheck(fakePinger{})(ctx))

	err := PingCheck(fakePinger{err: errors.New("connection refused")})(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestEndpointCheck(t *testing.T) {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	require.NoError(t, EndpointCheck(srv.Client(), srv.URL)(ctx))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()
	err := EndpointCheck(down.Client(), down.URL)(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestEndpointCheck_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	err := EndpointCheck(nil, srv.URL)(context.Background())
	require.Error(t, err)
}
