// FILE: src/internal/ipc/ipc.go
// Package ipc implements the nonce-challenge mutual-authentication
// handshake and the MAC-authenticated, length-prefixed event frames
// that carry records across the bridge's byte-stream transports.
package ipc

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/digest"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/wsnerr"
)

const (
	protocolVersion byte = 1
	nonceSize            = 32
	proofSize            = 32
	sessionKeySize       = 32
	macSize              = 32
	frameTypeEvent  byte = 1
)

var (
	serverHelloMagic = [4]byte{'W', 'S', 'L', 'H'}
	clientHelloMagic = [4]byte{'W', 'S', 'L', 'C'}
	serverAckMagic   = [4]byte{'W', 'S', 'L', 'A'}
	frameMagic       = [4]byte{'W', 'S', 'L', 'E'}
)

// SessionKey is the 32-byte symmetric key derived during the
// handshake; it lives for the lifetime of a single connection.
type SessionKey [sessionKeySize]byte

func generateNonce() ([nonceSize]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nonce, err
	}
	return nonce, nil
}

func hmacLabel(secret []byte, label string, first, second []byte) []byte {
	input := make([]byte, 0, len(label)+len(first)+len(second))
	input = append(input, []byte(label)...)
	input = append(input, first...)
	input = append(input, second...)
	return digest.HMACSHA256(secret, input)
}

// ServerHandshake performs the server side of the handshake: it sends
// the server hello, verifies the client's proof, sends the server
// ack, and returns the derived session key. r and w must read/write
// fully or fail; ReadFull/WriteFull guard against short reads but a
// stream that silently truncates writes cannot be detected here.
func ServerHandshake(rw io.ReadWriter, sharedSecret []byte) (SessionKey, error) {
	serverNonce, err := generateNonce()
	if err != nil {
		return SessionKey{}, wsnerr.ResourceExhaustion("ipc", err)
	}

	hello := make([]byte, 4+1+3+nonceSize)
	copy(hello[0:4], serverHelloMagic[:])
	hello[4] = protocolVersion
	copy(hello[8:], serverNonce[:])
	if err := writeFull(rw, hello); err != nil {
		return SessionKey{}, wsnerr.TransientIO("ipc", err)
	}

	resp := make([]byte, 4+1+3+nonceSize+proofSize)
	if err := readFull(rw, resp); err != nil {
		return SessionKey{}, wsnerr.TransientIO("ipc", err)
	}
	if !magicEquals(resp[0:4], clientHelloMagic) || resp[4] != protocolVersion {
		return SessionKey{}, wsnerr.AuthFailure("ipc", fmt.Errorf("bad client hello"))
	}
	clientNonce := resp[8 : 8+nonceSize]
	clientProof := resp[8+nonceSize : 8+nonceSize+proofSize]

	expectedClientProof := hmacLabel(sharedSecret, "client-proof", serverNonce[:], clientNonce)
	if !digest.EqualMAC(expectedClientProof, clientProof) {
		return SessionKey{}, wsnerr.AuthFailure("ipc", fmt.Errorf("client proof mismatch"))
	}

	serverProof := hmacLabel(sharedSecret, "server-proof", clientNonce, serverNonce[:])
	ack := make([]byte, 4+1+3+proofSize)
	copy(ack[0:4], serverAckMagic[:])
	ack[4] = protocolVersion
	copy(ack[8:], serverProof)
	if err := writeFull(rw, ack); err != nil {
		return SessionKey{}, wsnerr.TransientIO("ipc", err)
	}

	sessionBytes := hmacLabel(sharedSecret, "session", serverNonce[:], clientNonce)
	var session SessionKey
	copy(session[:], sessionBytes)
	return session, nil
}

// ClientHandshake performs the client side of the handshake: it reads
// the server hello, sends the client hello with proof, verifies the
// server's ack proof, and returns the derived session key.
func ClientHandshake(rw io.ReadWriter, sharedSecret []byte) (SessionKey, error) {
	hello := make([]byte, 4+1+3+nonceSize)
	if err := readFull(rw, hello); err != nil {
		return SessionKey{}, wsnerr.TransientIO("ipc", err)
	}
	if !magicEquals(hello[0:4], serverHelloMagic) || hello[4] != protocolVersion {
		return SessionKey{}, wsnerr.AuthFailure("ipc", fmt.Errorf("bad server hello"))
	}
	serverNonce := hello[8 : 8+nonceSize]

	clientNonce, err := generateNonce()
	if err != nil {
		return SessionKey{}, wsnerr.ResourceExhaustion("ipc", err)
	}
	clientProof := hmacLabel(sharedSecret, "client-proof", serverNonce, clientNonce[:])

	resp := make([]byte, 4+1+3+nonceSize+proofSize)
	copy(resp[0:4], clientHelloMagic[:])
	resp[4] = protocolVersion
	copy(resp[8:8+nonceSize], clientNonce[:])
	copy(resp[8+nonceSize:], clientProof)
	if err := writeFull(rw, resp); err != nil {
		return SessionKey{}, wsnerr.TransientIO("ipc", err)
	}

	ack := make([]byte, 4+1+3+proofSize)
	if err := readFull(rw, ack); err != nil {
		return SessionKey{}, wsnerr.TransientIO("ipc", err)
	}
	if !magicEquals(ack[0:4], serverAckMagic) || ack[4] != protocolVersion {
		return SessionKey{}, wsnerr.AuthFailure("ipc", fmt.Errorf("bad server ack"))
	}
	serverProof := ack[8 : 8+proofSize]
	expectedServerProof := hmacLabel(sharedSecret, "server-proof", clientNonce[:], serverNonce)
	if !digest.EqualMAC(expectedServerProof, serverProof) {
		return SessionKey{}, wsnerr.AuthFailure("ipc", fmt.Errorf("server proof mismatch"))
	}

	sessionBytes := hmacLabel(sharedSecret, "session", serverNonce, clientNonce[:])
	var session SessionKey
	copy(session[:], sessionBytes)
	return session, nil
}

// SendEvent writes r as a MAC-authenticated length-prefixed frame.
func SendEvent(w io.Writer, session SessionKey, r event.Record) error {
	payload := []byte(event.Serialize(r))
	mac := digest.HMACSHA256(session[:], payload)

	header := make([]byte, 12)
	copy(header[0:4], frameMagic[:])
	header[4] = protocolVersion
	header[5] = frameTypeEvent
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))

	if err := writeFull(w, header); err != nil {
		return wsnerr.TransientIO("ipc", err)
	}
	if err := writeFull(w, mac); err != nil {
		return wsnerr.TransientIO("ipc", err)
	}
	if err := writeFull(w, payload); err != nil {
		return wsnerr.TransientIO("ipc", err)
	}
	return nil
}

// ReceiveEvent reads and verifies one frame, returning the decoded
// record. Any magic, version, type, length, or MAC mismatch drops the
// connection with no resync attempt.
func ReceiveEvent(r io.Reader, session SessionKey) (event.Record, error) {
	header := make([]byte, 12)
	if err := readFull(r, header); err != nil {
		return event.Record{}, wsnerr.TransientIO("ipc", err)
	}
	if !magicEquals(header[0:4], frameMagic) {
		return event.Record{}, wsnerr.MalformedInput("ipc", fmt.Errorf("bad frame magic"))
	}
	if header[4] != protocolVersion || header[5] != frameTypeEvent {
		return event.Record{}, wsnerr.MalformedInput("ipc", fmt.Errorf("bad frame version/type"))
	}
	payloadLen := binary.LittleEndian.Uint32(header[8:12])

	mac := make([]byte, macSize)
	if err := readFull(r, mac); err != nil {
		return event.Record{}, wsnerr.TransientIO("ipc", err)
	}

	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if err := readFull(r, payload); err != nil {
			return event.Record{}, wsnerr.TransientIO("ipc", err)
		}
	}

	expectedMAC := digest.HMACSHA256(session[:], payload)
	if !digest.EqualMAC(expectedMAC, mac) {
		return event.Record{}, wsnerr.AuthFailure("ipc", fmt.Errorf("frame MAC mismatch"))
	}

	rec, ok := event.Deserialize(string(payload))
	if !ok {
		return event.Record{}, wsnerr.MalformedInput("ipc", fmt.Errorf("unparseable event payload"))
	}
	return rec, nil
}

func magicEquals(got []byte, want [4]byte) bool {
	return got[0] == want[0] && got[1] == want[1] && got[2] == want[2] && got[3] == want[3]
}

func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}

func writeFull(w io.Writer, buf []byte) error {
	_, err := w.Write(buf)
	if err != nil {
		return err
	}
	return nil
}
