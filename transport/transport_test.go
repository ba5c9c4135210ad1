package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSocketReadableDeliversChunks(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer server.Close()

	s := NewSocket(client)
	defer s.Close()

	go func() {
		_, _ = server.Write([]byte("hello"))
	}()

	select {
	case chunk := <-s.Readable():
		require.Equal("hello", string(chunk))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for readable chunk")
	}
}

func TestSocketClosedOnPeerDisconnect(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	s := NewSocket(client)

	server.Close()

	select {
	case <-s.Closed():
		require.Error(s.Err())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for closed")
	}
}

func TestSocketCloseIsIdempotent(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer server.Close()

	s := NewSocket(client)
	require.NoError(s.Close())
	require.NoError(s.Close())
}

func TestSocketDetach(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer server.Close()
	defer client.Close()

	s := NewSocket(client)
	require.False(s.Detached())
	s.Detach()
	require.True(s.Detached())
}

func TestReadyNotifier(t *testing.T) {
	require := require.New(t)

	n := NewReadyNotifier()
	require.False(n.IsReady())

	select {
	case <-n.Ready():
		t.Fatal("should not be ready yet")
	default:
	}

	n.SetReady()
	require.True(n.IsReady())

	select {
	case <-n.Ready():
	default:
		t.Fatal("ready channel should be closed")
	}

	// idempotent
	require.NotPanics(func() { n.SetReady() })
}
