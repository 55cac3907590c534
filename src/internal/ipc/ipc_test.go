// FILE: src/internal/ipc/ipc_test.go
package ipc

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/wsnerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pair holds the two ends of an in-memory net.Pipe, matching how the
// bridge drives a real stream.
type pair struct {
	server net.Conn
	client net.Conn
}

func newPair() pair {
	s, c := net.Pipe()
	return pair{server: s, client: c}
}

func TestHandshakeDerivesIdenticalSessionKey(t *testing.T) {
	p := newPair()
	secret := []byte("secret")

	serverKeyCh := make(chan SessionKey, 1)
	serverErrCh := make(chan error, 1)
	go func() {
		key, err := ServerHandshake(p.server, secret)
		serverKeyCh <- key
		serverErrCh <- err
	}()

	clientKey, clientErr := ClientHandshake(p.client, secret)
	require.NoError(t, clientErr)

	serverKey := <-serverKeyCh
	require.NoError(t, <-serverErrCh)

	assert.Equal(t, serverKey, clientKey)
}

func TestSendReceiveRoundTrip(t *testing.T) {
	p := newPair()
	secret := []byte("secret")

	serverKeyCh := make(chan SessionKey, 1)
	go func() {
		key, _ := ServerHandshake(p.server, secret)
		serverKeyCh <- key
	}()
	clientKey, err := ClientHandshake(p.client, secret)
	require.NoError(t, err)
	serverKey := <-serverKeyCh

	r := event.Record{
		Timestamp: time.Now(),
		Source:    "test",
		Category:  event.CategoryGeneral,
		Severity:  event.SeverityInfo,
		Message:   "hello",
	}

	recvCh := make(chan event.Record, 1)
	recvErrCh := make(chan error, 1)
	go func() {
		rec, err := ReceiveEvent(p.server, serverKey)
		recvCh <- rec
		recvErrCh <- err
	}()

	require.NoError(t, SendEvent(p.client, clientKey, r))

	got := <-recvCh
	require.NoError(t, <-recvErrCh)
	assert.Equal(t, r.Message, got.Message)
	assert.Equal(t, r.Source, got.Source)
}

func TestReceiveRejectsCorruptedMAC(t *testing.T) {
	p := newPair()
	secret := []byte("secret")

	serverKeyCh := make(chan SessionKey, 1)
	go func() {
		key, _ := ServerHandshake(p.server, secret)
		serverKeyCh <- key
	}()
	clientKey, err := ClientHandshake(p.client, secret)
	require.NoError(t, err)
	serverKey := <-serverKeyCh

	done := make(chan struct{})
	recvErrCh := make(chan error, 1)
	go func() {
		_, err := ReceiveEvent(p.server, serverKey)
		recvErrCh <- err
		close(done)
	}()

	r := event.Record{Message: "tamper me"}
	wrongKey := clientKey
	wrongKey[0] ^= 0xFF
	require.NoError(t, SendEvent(p.client, wrongKey, r))

	<-done
	err = <-recvErrCh
	assert.Error(t, err)
	assert.True(t, errors.Is(err, wsnerr.ErrAuthFailure))
}
