// relay-send delivers a single telemetry payload and exits. Payload comes
// from -data or stdin. Useful from shell scripts and for poking a relay
// endpoint during device onboarding.
package main

import (
	"flag"
	"io/ioutil"
	"os"
	"strings"
	"time"

	"github.com/juju/errors"

	"github.com/avnet-iotc/relay-go/log2"
	"github.com/avnet-iotc/relay-go/relay"
)

func main() {
	flagAddr := flag.String("addr", "/tmp/iotconnect-relay.sock", "relay address: socket path or tcp://host:port")
	flagID := flag.String("client-id", "relay-send", "client identifier")
	flagData := flag.String("data", "", "JSON object to send; default reads stdin")
	flagTimeout := flag.Duration("timeout", 10*time.Second, "give up if not connected within this time")
	flag.Parse()

	log := log2.NewStderr(log2.LInfo)
	log.SetFlags(0)

	data := *flagData
	if data == "" {
		bs, err := ioutil.ReadAll(os.Stdin)
		if err != nil {
			log.Fatal(errors.Annotate(err, "read stdin"))
		}
		data = strings.TrimSpace(string(bs))
	}

	client, err := relay.NewClient(relay.ClientOptions{
		Address:        *flagAddr,
		ClientID:       *flagID,
		Log:            log,
		ReconnectDelay: 500 * time.Millisecond,
	})
	if err != nil {
		log.Fatal(relay.ErrorText(err), ": ", err)
	}
	if err := client.Start(); err != nil {
		log.Fatal(relay.ErrorText(err), ": ", err)
	}
	defer client.Stop()

	deadline := time.Now().Add(*flagTimeout)
	for !client.IsConnected() {
		if time.Now().After(deadline) {
			log.Fatal("connect timeout")
		}
		time.Sleep(50 * time.Millisecond)
	}

	if err := client.SendTelemetry(data); err != nil {
		log.Fatal(relay.ErrorText(err), ": ", err)
	}
	log.Infof("sent %d bytes", len(data))
}
