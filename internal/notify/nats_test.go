package notify

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
)

func TestBuildEventEncode(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	data, err := BuildEvent{
		BuildID:    "b1",
		Dir:        "/repo/docs",
		Tool:       "doxygen",
		ConfigFile: "Doxyfile",
		Commit:     "abc",
		Outcome:    "success",
		StartedAt:  started,
		DurationMS: 1500,
	}.Encode()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "b1", decoded["build_id"])
	assert.Equal(t, "abc", decoded["commit"])
	assert.Equal(t, "2026-01-02T03:04:05Z", decoded["started_at"])
	assert.EqualValues(t, 1500, decoded["duration_ms"])
	assert.NotContains(t, decoded, "branch")
	assert.NotContains(t, decoded, "error")
}

func TestNewNATSPublisherRequiresSubject(t *testing.T) {
	_, err := NewNATSPublisher("nats://127.0.0.1:4222", "")
	require.Error(t, err)
	assert.True(t, foundation.HasCategory(err, foundation.CategoryConfig))
}

func TestNewNATSPublisherUnreachable(t *testing.T) {
	// Reserve a port and close it so nothing is listening there.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	_, err = NewNATSPublisher("nats://"+addr, "docgen.builds")
	require.Error(t, err)
	assert.True(t, foundation.HasCategory(err, foundation.CategoryNetwork))
}

func TestNilPublisherClose(t *testing.T) {
	var p *NATSPublisher
	assert.NoError(t, p.Close())
}

type natsMessage struct {
	subject string
	payload []byte
}

// startNATSStub serves just enough of the NATS client protocol for a
// publisher: INFO on connect, PONG for every PING and capture of every PUB.
func startNATSStub(t *testing.T) (string, <-chan natsMessage) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	msgs := make(chan natsMessage, 16)
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go serveNATS(conn, msgs)
		}
	}()
	return "nats://" + l.Addr().String(), msgs
}

func serveNATS(conn net.Conn, msgs chan<- natsMessage) {
	defer func() { _ = conn.Close() }()
	info := `{"server_id":"stub","version":"2.10.0","proto":1,"max_payload":1048576}`
	if _, err := fmt.Fprintf(conn, "INFO %s\r\n", info); err != nil {
		return
	}
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch strings.ToUpper(fields[0]) {
		case "PING":
			if _, err := io.WriteString(conn, "PONG\r\n"); err != nil {
				return
			}
		case "PUB":
			if len(fields) < 3 {
				return
			}
			size, err := strconv.Atoi(fields[len(fields)-1])
			if err != nil {
				return
			}
			buf := make([]byte, size+2)
			if _, err := io.ReadFull(r, buf); err != nil {
				return
			}
			msgs <- natsMessage{subject: fields[1], payload: buf[:size]}
		}
	}
}

func TestNATSPublisherPublishesEvent(t *testing.T) {
	url, msgs := startNATSStub(t)

	pub, err := NewNATSPublisher(url, "docgen.builds")
	require.NoError(t, err)

	event := BuildEvent{BuildID: "b42", Dir: "/repo/docs", Tool: "doxygen", ConfigFile: "Doxyfile", Outcome: "success"}
	require.NoError(t, pub.Publish(t.Context(), event))

	select {
	case msg := <-msgs:
		assert.Equal(t, "docgen.builds", msg.subject)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(msg.payload, &decoded))
		assert.Equal(t, "b42", decoded["build_id"])
		assert.Equal(t, "success", decoded["outcome"])
	case <-time.After(5 * time.Second):
		t.Fatal("event was not published")
	}

	assert.NoError(t, pub.Close())
}
