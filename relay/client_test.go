package relay_test

import (
	"bufio"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avnet-iotc/relay-go/log2"
	"github.com/avnet-iotc/relay-go/relay"
)

type cmdEvent struct{ name, params string }

// mockRelay accepts connections and feeds received lines (without newline)
// into lines. onLine, when set, may write back to the client connection.
func mockRelay(t testing.TB, network, addr string, lines chan<- string, onLine func(net.Conn, string)) net.Listener {
	ll, err := net.Listen(network, addr)
	require.NoError(t, err)
	go func() {
		for {
			conn, err := ll.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				r := bufio.NewReader(conn)
				for {
					line, err := r.ReadString('\n')
					if err != nil {
						return
					}
					line = strings.TrimSuffix(line, "\n")
					if lines != nil {
						lines <- line
					}
					if onLine != nil {
						onLine(conn, line)
					}
				}
			}(conn)
		}
	}()
	return ll
}

func testOptions(t testing.TB, address string) relay.ClientOptions {
	return relay.ClientOptions{
		Address:        address,
		ClientID:       "test_client",
		Log:            log2.NewTest(t, log2.LDebug),
		NetworkTimeout: time.Second,
		ReconnectDelay: 50 * time.Millisecond,
	}
}

func waitConnected(t testing.TB, c *relay.Client, want bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.IsConnected() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for IsConnected=%v", want)
}

func recvLine(t testing.TB, lines <-chan string) string {
	t.Helper()
	select {
	case line := <-lines:
		return line
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for server to receive a line")
		return ""
	}
}

func TestClientNominal(t *testing.T) {
	t.Parallel()

	sock := filepath.Join(t.TempDir(), "relay.sock")
	lines := make(chan string, 16)
	server := mockRelay(t, "unix", sock, lines, func(conn net.Conn, line string) {
		if strings.Contains(line, `"register"`) {
			_, _ = conn.Write([]byte(`{"type":"command","command_name":"Command_A","parameters":"42"}` + "\n"))
		}
	})
	defer server.Close()

	cmdch := make(chan cmdEvent, 16)
	opt := testOptions(t, sock)
	opt.OnCommand = func(name, params string) { cmdch <- cmdEvent{name, params} }
	client, err := relay.NewClient(opt)
	require.NoError(t, err)
	require.NoError(t, client.Start())
	waitConnected(t, client, true)

	assert.Equal(t, `{"type":"register","client_id":"test_client"}`, recvLine(t, lines))

	select {
	case cmd := <-cmdch:
		assert.Equal(t, "Command_A", cmd.name)
		assert.Equal(t, "42", cmd.params)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for command dispatch")
	}

	require.NoError(t, client.SendTelemetry(`{"temperature":25.5}`))
	assert.Equal(t, `{"type":"telemetry","client_id":"test_client","data":{"temperature":25.5}}`, recvLine(t, lines))

	client.Stop()
	assert.False(t, client.IsConnected())
	err = client.SendTelemetry(`{"x":1}`)
	assert.Equal(t, relay.ErrDisconnected, errors.Cause(err))
	t.Logf("stat=%s", client.Stat())
}

func TestClientTCP(t *testing.T) {
	t.Parallel()

	lines := make(chan string, 16)
	server := mockRelay(t, "tcp", "127.0.0.1:0", lines, nil)
	defer server.Close()

	client, err := relay.NewClient(testOptions(t, "tcp://"+server.Addr().String()))
	require.NoError(t, err)
	require.NoError(t, client.Start())
	defer client.Stop()
	waitConnected(t, client, true)

	assert.Equal(t, `{"type":"register","client_id":"test_client"}`, recvLine(t, lines))
	require.NoError(t, client.SendTelemetry(`{"n":1}`))
	assert.Equal(t, `{"type":"telemetry","client_id":"test_client","data":{"n":1}}`, recvLine(t, lines))
}

func TestClientUnreachableThenUp(t *testing.T) {
	t.Parallel()

	sock := filepath.Join(t.TempDir(), "relay.sock")
	client, err := relay.NewClient(testOptions(t, sock))
	require.NoError(t, err)
	require.NoError(t, client.Start())
	defer client.Stop()

	assert.False(t, client.IsConnected())
	err = client.SendTelemetry(`{"n":1}`)
	assert.Equal(t, relay.ErrDisconnected, errors.Cause(err))

	time.Sleep(120 * time.Millisecond)
	assert.False(t, client.IsConnected())

	server := mockRelay(t, "unix", sock, nil, nil)
	defer server.Close()
	waitConnected(t, client, true)
}

func TestClientPeerCloseReconnect(t *testing.T) {
	t.Parallel()

	sock := filepath.Join(t.TempDir(), "relay.sock")
	var mu sync.Mutex
	accepts := 0
	server := mockRelay(t, "unix", sock, nil, func(conn net.Conn, line string) {
		if !strings.Contains(line, `"register"`) {
			return
		}
		mu.Lock()
		accepts++
		first := accepts == 1
		mu.Unlock()
		if first {
			// drop the first connection right after the handshake
			_ = conn.Close()
		}
	})
	defer server.Close()

	client, err := relay.NewClient(testOptions(t, sock))
	require.NoError(t, err)
	require.NoError(t, client.Start())
	defer client.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if client.Stat().Connects.Value() >= 2 && client.IsConnected() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no reconnect after peer close, stat=%s", client.Stat())
}

// One command line and one non-command line delivered as arbitrary chunks
// must produce exactly one dispatch.
func TestClientMixedStream(t *testing.T) {
	t.Parallel()

	stream := `{"type":"command","command_name":"Command_A","parameters":"42"}` + "\n" +
		`{"type":"telemetry","client_id":"x","data":{}}` + "\n"

	sock := filepath.Join(t.TempDir(), "relay.sock")
	server := mockRelay(t, "unix", sock, nil, func(conn net.Conn, line string) {
		if !strings.Contains(line, `"register"`) {
			return
		}
		// split mid-envelope to exercise frame reassembly
		_, _ = conn.Write([]byte(stream[:20]))
		time.Sleep(10 * time.Millisecond)
		_, _ = conn.Write([]byte(stream[20:]))
	})
	defer server.Close()

	cmdch := make(chan cmdEvent, 16)
	opt := testOptions(t, sock)
	opt.OnCommand = func(name, params string) { cmdch <- cmdEvent{name, params} }
	client, err := relay.NewClient(opt)
	require.NoError(t, err)
	require.NoError(t, client.Start())
	defer client.Stop()

	select {
	case cmd := <-cmdch:
		assert.Equal(t, "Command_A", cmd.name)
		assert.Equal(t, "42", cmd.params)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for command dispatch")
	}
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, cmdch, 0, "telemetry line must not dispatch")
}

func TestStopConcurrentSend(t *testing.T) {
	t.Parallel()

	sock := filepath.Join(t.TempDir(), "relay.sock")
	server := mockRelay(t, "unix", sock, nil, nil)
	defer server.Close()

	client, err := relay.NewClient(testOptions(t, sock))
	require.NoError(t, err)
	require.NoError(t, client.Start())
	waitConnected(t, client, true)

	done := make(chan struct{})
	wg := sync.WaitGroup{}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				err := client.SendTelemetry(`{"n":1}`)
				if err != nil && errors.Cause(err) != relay.ErrDisconnected && errors.Cause(err) != relay.ErrSend {
					panic(err)
				}
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	client.Stop()
	close(done)
	wg.Wait()

	assert.False(t, client.IsConnected())
	err = client.SendTelemetry(`{"n":1}`)
	assert.Equal(t, relay.ErrDisconnected, errors.Cause(err))
}

func TestNewClientInvalid(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 300)
	cases := []struct {
		name string
		opt  relay.ClientOptions
	}{
		{"empty-address", relay.ClientOptions{ClientID: "x"}},
		{"empty-client-id", relay.ClientOptions{Address: "/tmp/x.sock"}},
		{"long-address", relay.ClientOptions{Address: long, ClientID: "x"}},
		{"long-client-id", relay.ClientOptions{Address: "/tmp/x.sock", ClientID: long}},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			_, err := relay.NewClient(c.opt)
			assert.Equal(t, relay.ErrInvalidParam, errors.Cause(err))
		})
	}
}

func TestCreateStopWithoutStart(t *testing.T) {
	t.Parallel()

	client, err := relay.NewClient(testOptions(t, filepath.Join(t.TempDir(), "nowhere.sock")))
	require.NoError(t, err)
	client.Stop()
	assert.False(t, client.IsConnected())
}

func TestStartTwice(t *testing.T) {
	t.Parallel()

	sock := filepath.Join(t.TempDir(), "relay.sock")
	server := mockRelay(t, "unix", sock, nil, nil)
	defer server.Close()

	client, err := relay.NewClient(testOptions(t, sock))
	require.NoError(t, err)
	require.NoError(t, client.Start())
	defer client.Stop()
	assert.Equal(t, relay.ErrInvalidParam, errors.Cause(client.Start()))
}

func TestStartAfterStop(t *testing.T) {
	t.Parallel()

	client, err := relay.NewClient(testOptions(t, filepath.Join(t.TempDir(), "nowhere.sock")))
	require.NoError(t, err)
	client.Stop()
	assert.Equal(t, relay.ErrSocket, errors.Cause(client.Start()))
}

func TestSendEmptyPayload(t *testing.T) {
	t.Parallel()

	client, err := relay.NewClient(testOptions(t, filepath.Join(t.TempDir(), "nowhere.sock")))
	require.NoError(t, err)
	defer client.Stop()
	assert.Equal(t, relay.ErrJSON, errors.Cause(client.SendTelemetry("")))
}
