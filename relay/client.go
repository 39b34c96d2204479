package relay

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"

	"github.com/avnet-iotc/relay-go/helpers"
	"github.com/avnet-iotc/relay-go/log2"
	relay_config "github.com/avnet-iotc/relay-go/relay/config"
)

const (
	DefaultReconnectDelay = 5 * time.Second
	DefaultNetworkTimeout = 30 * time.Second

	MaxAddressLen  = 256
	MaxClientIDLen = 64
)

// CommandFunc receives relay commands. It runs on the receive loop
// goroutine: a slow callback delays further frames of that connection,
// and calling Stop() from inside it deadlocks.
type CommandFunc func(name, parameters string)

type ClientOptions struct {
	Address   string
	ClientID  string
	OnCommand CommandFunc
	Log       *log2.Log

	NetworkTimeout time.Duration
	ReconnectDelay time.Duration
	// ReconnectMax > ReconnectDelay enables limited exponential backoff
	// between failed attempts; default is the fixed ReconnectDelay.
	ReconnectMax time.Duration
	ReadLimit    int
}

// OptionsFromConfig maps file configuration to runtime options.
// Callback and logger are wired by the application.
func OptionsFromConfig(c relay_config.Config) ClientOptions {
	return ClientOptions{
		Address:        c.Address,
		ClientID:       c.ClientID,
		NetworkTimeout: helpers.IntSecondDefault(c.NetworkTimeoutSec, DefaultNetworkTimeout),
		ReconnectDelay: helpers.IntSecondDefault(c.ReconnectSec, DefaultReconnectDelay),
		ReconnectMax:   helpers.IntSecondDefault(c.ReconnectMaxSec, 0),
		ReadLimit:      c.ReadLimit,
	}
}

// IoTConnect relay client.
// - NewClient() returns only configuration errors, network IO happens later
// - Start() makes one synchronous connect attempt, then keeps retrying in
//   background until Stop()
// - register envelope is sent after every successful connect, before any
//   telemetry goes out on that connection
// - SendTelemetry while offline returns ErrDisconnected, nothing is queued
type Client struct { //nolint:maligned
	sync.Mutex // guards conn, connected, started

	alive     *alive.Alive
	conn      net.Conn
	connected bool
	started   bool

	opt      ClientOptions
	target   Target
	dialer   net.Dialer
	register []byte
	backoff  helpers.Backoff
	stat     SessionStat
}

func NewClient(opt ClientOptions) (*Client, error) {
	if opt.Address == "" || len(opt.Address) > MaxAddressLen {
		return nil, errors.Annotatef(ErrInvalidParam, "address=%q", opt.Address)
	}
	if opt.ClientID == "" || len(opt.ClientID) > MaxClientIDLen {
		return nil, errors.Annotatef(ErrInvalidParam, "client_id=%q", opt.ClientID)
	}
	if opt.NetworkTimeout == 0 {
		opt.NetworkTimeout = DefaultNetworkTimeout
	}
	if opt.ReconnectDelay == 0 {
		opt.ReconnectDelay = DefaultReconnectDelay
	}
	if opt.ReconnectMax < opt.ReconnectDelay {
		opt.ReconnectMax = opt.ReconnectDelay
	}

	c := &Client{
		alive:    alive.NewAlive(),
		opt:      opt,
		target:   ResolveAddr(opt.Address),
		register: EncodeRegister(opt.ClientID),
	}
	c.dialer = net.Dialer{Timeout: opt.NetworkTimeout}
	c.backoff = helpers.Backoff{Min: opt.ReconnectDelay, Max: opt.ReconnectMax, K: 2}
	if strings.HasPrefix(opt.Address, tcpPrefix) && c.target.Network == "unix" {
		c.opt.Log.Errorf("relay: address=%q looks like tcp:// but parses as a socket path", opt.Address)
	}
	return c, nil
}

// Start begins one connect attempt, then launches the reconnect
// supervisor. The initial attempt failing is not an error, the supervisor
// keeps retrying; only a client that was already stopped fails.
func (c *Client) Start() error {
	err := helpers.WithLockError(c, func() error {
		if c.started {
			return errors.Annotatef(ErrInvalidParam, "start: already started")
		}
		c.started = true
		return nil
	})
	if err != nil {
		return err
	}

	if err := c.connect(); err != nil {
		c.opt.Log.Errorf("relay: initial connection failed, will retry in background err=%v", err)
	} else {
		c.opt.Log.Infof("relay: initial connection successful")
	}

	if !c.alive.Add(1) {
		return errors.Annotatef(ErrSocket, "start: client is stopped")
	}
	go c.supervisor()
	return nil
}

// Stop terminates both background tasks, closes the connection and waits
// for the tasks to exit, so no goroutine touches the client afterwards.
// Idempotent, safe to call concurrently with any other method except from
// inside the command callback.
func (c *Client) Stop() {
	c.alive.Stop()
	c.disconnect()
	c.alive.Wait()
}

func (c *Client) IsConnected() bool {
	c.Lock()
	defer c.Unlock()
	return c.connected
}

func (c *Client) Stat() *SessionStat { return &c.stat }

// SendTelemetry writes one telemetry envelope carrying the JSON object
// text data. A failed or partial write drops the connection and returns
// ErrSend; the supervisor reconnects in background.
func (c *Client) SendTelemetry(data string) error {
	if data == "" {
		return errors.Annotatef(ErrJSON, "empty telemetry payload")
	}
	b := EncodeTelemetry(c.opt.ClientID, data) // pure, outside the lock

	c.Lock()
	defer c.Unlock()
	if !c.connected || c.conn == nil {
		return ErrDisconnected
	}
	if err := c.lockedWrite(b); err != nil {
		return errors.Wrap(err, ErrSend)
	}
	c.stat.SendTele.Add(1)
	c.stat.SendBytes.Add(int64(len(b)))
	return nil
}

// connect dials the resolved target, transitions to connected, sends the
// register envelope and starts a receive loop bound to this connection.
// Register failing is not fatal to connect: the connection is dropped for
// the supervisor to retry, like any other write failure.
func (c *Client) connect() error {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-c.alive.StopChan():
			cancel()
		case <-ctx.Done():
		}
	}()
	conn, err := c.dialer.DialContext(ctx, c.target.Network, c.target.Addr)
	cancel()
	if err != nil {
		if !c.alive.IsRunning() {
			return ErrClosing
		}
		return errors.Wrap(err, ErrConnect)
	}

	c.Lock()
	if !c.alive.IsRunning() {
		c.Unlock()
		_ = conn.Close()
		return ErrClosing
	}
	if c.conn != nil {
		c.lockedDrop(errors.Errorf("replaced by new connection"))
	}
	c.conn = conn
	c.connected = true
	c.stat.Connects.Add(1)
	err = c.lockedWrite(c.register)
	c.Unlock()

	if err != nil {
		c.opt.Log.Errorf("relay: register send failed err=%v", err)
		return nil
	}
	c.opt.Log.Infof("relay: connected %s %s", c.target.Network, c.target.Addr)

	if !c.alive.Add(1) {
		c.disconnect()
		return errors.Annotatef(ErrSocket, "connect: receive loop not started")
	}
	go c.recvLoop(conn)
	return nil
}

// recvLoop owns the read side of one connection instance. It exits when
// the read fails; dropping the connection here is what the supervisor
// observes to schedule a reconnect.
func (c *Client) recvLoop(conn net.Conn) {
	defer c.alive.Done()

	fr := newFrameReader(conn, c.opt.ReadLimit)
	for {
		frame, err := fr.ReadFrame()
		if err != nil {
			c.dropConn(conn, errors.Annotate(err, "receive"))
			return
		}
		c.stat.RecvFrames.Add(1)
		c.stat.LastRecv.SetNow()

		cmd, ok := DecodeCommand(frame)
		if !ok {
			c.opt.Log.Debugf("relay: ignore frame=%q", frame)
			continue
		}
		c.stat.RecvCommand.Add(1)
		if c.opt.OnCommand != nil {
			c.opt.OnCommand(cmd.Name, cmd.Parameters)
		}
	}
}

// supervisor keeps the link up while the client runs. Pacing is the fixed
// ReconnectDelay, growing toward ReconnectMax after consecutive failures.
func (c *Client) supervisor() {
	defer c.alive.Done()

	stopch := c.alive.StopChan()
	for c.alive.IsRunning() {
		up := c.IsConnected()
		if !up {
			err := c.connect()
			up = err == nil
			if err != nil && errors.Cause(err) != ErrClosing {
				c.opt.Log.Debugf("relay: reconnect err=%v", err)
			} else if up {
				c.opt.Log.Infof("relay: reconnection successful")
			}
		}
		select {
		case <-time.After(c.backoff.Next(up)):
		case <-stopch:
			return
		}
	}
}

func (c *Client) disconnect() {
	helpers.WithLock(c, func() { c.lockedDrop(ErrClosing) })
}

// dropConn transitions to disconnected only while conn is still current;
// a stale receive loop must not clobber a newer connection.
func (c *Client) dropConn(conn net.Conn, reason error) {
	c.Lock()
	defer c.Unlock()
	if c.conn != conn {
		return
	}
	c.lockedDrop(reason)
}

// lockedDrop closes and forgets the current connection. Callers hold the
// lock. Single place where connected goes false.
func (c *Client) lockedDrop(reason error) {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	if c.connected {
		c.connected = false
		c.opt.Log.Infof("relay: disconnected: %s", errString(reason))
	}
}

// lockedWrite sends b over the current connection, dropping it on any
// short or failed write. Callers hold the lock and have checked connected.
func (c *Client) lockedWrite(b []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.opt.NetworkTimeout))
	if err := helpers.WriteAll(c.conn, b); err != nil {
		c.lockedDrop(err)
		return err
	}
	return nil
}

// errString reformats well known errors for easier log reading.
func errString(e error) string {
	if e == nil {
		return ""
	}
	s := e.Error()
	if neterr, ok := e.(net.Error); ok && neterr.Timeout() {
		return "timeout"
	}
	switch {
	case strings.HasSuffix(s, "i/o timeout"):
		return "timeout"
	case strings.HasSuffix(s, "connection reset by peer"):
		return "closed by remote"
	case strings.HasSuffix(s, "EOF"):
		return "closed by remote"
	}
	return s
}
