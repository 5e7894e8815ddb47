package control

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/hotbundle/pkg/runloop"
)

type fakeTarget struct {
	mu          sync.Mutex
	running     bool
	testRunning bool
	token       interface{}
	hasToken    bool
	stops       int
}

func (f *fakeTarget) DoStart() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
}

func (f *fakeTarget) DoStop(token interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hasToken && reflect.DeepEqual(f.token, token) {
		return
	}
	f.token, f.hasToken = token, true
	f.running = false
	f.stops++
}

func (f *fakeTarget) DoStopTest() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.testRunning = false
}

func (f *fakeTarget) Status() runloop.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return runloop.Status{Running: f.running, TestRunning: f.testRunning, Iteration: f.stops}
}

func startServer(t *testing.T, target Target) (*Client, context.CancelFunc, <-chan error) {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "ctl.sock")
	srv := NewServer(socket, target, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx)
	}()

	select {
	case <-srv.Ready():
	case err := <-done:
		cancel()
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("server did not become ready")
	}

	t.Cleanup(cancel)
	return NewClient(WithSocketPath(socket), WithTimeout(2*time.Second)), cancel, done
}

func TestServer_RoundTrip(t *testing.T) {
	target := &fakeTarget{testRunning: true}
	client, _, _ := startServer(t, target)
	ctx := context.Background()

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.True(t, status.TestRunning)

	status, err = client.Start(ctx)
	require.NoError(t, err)
	assert.True(t, status.Running)

	status, err = client.Stop(ctx, "deploy-1")
	require.NoError(t, err)
	assert.False(t, status.Running)

	_, err = client.Start(ctx)
	require.NoError(t, err)
	status, err = client.Stop(ctx, "deploy-1")
	require.NoError(t, err)
	assert.True(t, status.Running, "repeated token is ignored")
	assert.Equal(t, 1, target.stops)

	status, err = client.Halt(ctx)
	require.NoError(t, err)
	assert.False(t, status.TestRunning)
}

func TestServer_UnknownCommand(t *testing.T) {
	client, _, _ := startServer(t, &fakeTarget{})

	conn, err := net.Dial("unix", client.socketPath)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, json.NewEncoder(conn).Encode(Command{Type: "reload", ID: "x"}))
	var resp Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	assert.Equal(t, "x", resp.ID)
	assert.Contains(t, resp.Error, "unknown command")
}

func TestServer_MultipleCommandsPerConnection(t *testing.T) {
	target := &fakeTarget{}
	client, _, _ := startServer(t, target)

	conn, err := net.Dial("unix", client.socketPath)
	require.NoError(t, err)
	defer conn.Close()

	enc := json.NewEncoder(conn)
	dec := json.NewDecoder(conn)
	for _, typ := range []string{CommandStart, CommandStatus} {
		require.NoError(t, enc.Encode(Command{Type: typ, ID: typ}))
		var resp Response
		require.NoError(t, dec.Decode(&resp))
		assert.Empty(t, resp.Error)
		assert.Equal(t, typ, resp.Type)
	}
}

func TestServer_ShutdownOnCancel(t *testing.T) {
	client, cancel, done := startServer(t, &fakeTarget{})
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err := client.Status(context.Background())
	assert.Error(t, err)
}

func TestClient_NoServer(t *testing.T) {
	client := NewClient(WithSocketPath(filepath.Join(t.TempDir(), "none.sock")), WithTimeout(100*time.Millisecond))
	_, err := client.Status(context.Background())
	assert.Error(t, err)
}
