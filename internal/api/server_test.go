package api

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rgm/pkg/config"
	"github.com/wonny/rgm/pkg/logger"
)

func TestNew_Timeouts(t *testing.T) {
	srv := New(&config.Config{Port: "8089", Env: "development"}, logger.NewNop(), http.NotFoundHandler())
	assert.Equal(t, ":8089", srv.httpServer.Addr)
	assert.Equal(t, defaultWriteTimeout, srv.httpServer.WriteTimeout)
	assert.Equal(t, defaultShutdownTimeout, srv.shutdownTimeout)

	srv = New(&config.Config{
		Port:            "9000",
		Env:             "production",
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: time.Second,
	}, logger.NewNop(), http.NotFoundHandler())
	assert.Equal(t, 5*time.Minute, srv.httpServer.WriteTimeout)
	assert.Equal(t, time.Second, srv.shutdownTimeout)
}

func TestServer_ServeDrainsInFlightScenario(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	router := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"scenario_id":"scn-slow"}`)
	})

	srv := New(&config.Config{Port: "0", Env: "development", ShutdownTimeout: 5 * time.Second}, logger.NewNop(), router)
	var hooked atomic.Bool
	srv.OnShutdown(func() { hooked.Store(true) })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, ln) }()

	type response struct {
		status int
		body   string
		err    error
	}
	respCh := make(chan response, 1)
	go func() {
		resp, err := http.Post("http://"+ln.Addr().String()+"/api/scenarios", "application/json", nil)
		if err != nil {
			respCh <- response{err: err}
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		respCh <- response{status: resp.StatusCode, body: string(body)}
	}()

	<-started
	cancel()

	// shutdown waits for the running scenario
	select {
	case err := <-served:
		t.Fatalf("Serve returned before the in-flight request finished: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Eventually(t, hooked.Load, time.Second, 10*time.Millisecond)

	close(release)
	resp := <-respCh
	require.NoError(t, resp.err)
	assert.Equal(t, http.StatusCreated, resp.status)
	assert.JSONEq(t, `{"scenario_id":"scn-slow"}`, resp.body)

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after shutdown")
	}

	// listener is closed
	_, err = net.DialTimeout("tcp", ln.Addr().String(), 200*time.Millisecond)
	assert.Error(t, err)
}
