// relay-demo is an example relay client application: it generates synthetic
// sensor values on a timer and pushes them as telemetry while the link is
// up. Values produced while offline are dropped, matching relay semantics.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/avnet-iotc/relay-go/helpers"
	"github.com/avnet-iotc/relay-go/log2"
	"github.com/avnet-iotc/relay-go/relay"
	relay_config "github.com/avnet-iotc/relay-go/relay/config"
)

const defaultTelemetryPeriod = 5 * time.Second

var colors = []string{"red", "blue", "green", "yellow", "orange", "purple", "black", "white"}

type appConfig struct {
	Relay        relay_config.Config `hcl:"relay"`
	TelemetrySec int                 `hcl:"telemetry_sec"`
	LogFile      string              `hcl:"log_file"`
}

func main() {
	flagConfig := flag.String("config", "relay-demo.hcl", "path to HCL config file")
	flag.Parse()

	log := log2.NewStderr(log2.LInfo)
	if sdnotify(log, "STATUS=starting") {
		// under systemd, journal adds timestamps
		log.SetFlags(log2.LServiceFlags)
	} else if isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetFlags(log2.LInteractiveFlags)
	}

	config := mustReadConfig(log, *flagConfig)
	if config.LogFile != "" {
		log = log2.NewWriter(&lumberjack.Logger{
			Filename:   config.LogFile,
			MaxSize:    10, // MB
			MaxBackups: 3,
		}, log2.LInfo)
		log.SetFlags(log2.LServiceFlags)
	}
	if config.Relay.LogDebug {
		log.SetLevel(log2.LDebug)
	}

	opt := relay.OptionsFromConfig(config.Relay)
	opt.Log = log
	opt.OnCommand = func(name, params string) { handleCommand(log, name, params) }
	client, err := relay.NewClient(opt)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	if err := client.Start(); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	sdnotify(log, daemon.SdNotifyReady)

	period := helpers.IntSecondDefault(config.TelemetrySec, defaultTelemetryPeriod)
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	tick := time.NewTicker(period)
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-tick.C:
			number := rnd.Intn(101)
			color := colors[rnd.Intn(len(colors))]
			log.Debugf("number=%d color=%s", number, color)
			if !client.IsConnected() {
				continue
			}
			data := fmt.Sprintf(`{"random_number":%d,"random_color":%q}`, number, color)
			if err := client.SendTelemetry(data); err != nil {
				log.Errorf("telemetry: %s err=%v", relay.ErrorText(err), err)
			}

		case sig := <-sigch:
			log.Infof("signal=%v exiting gracefully", sig)
			tick.Stop()
			client.Stop()
			log.Infof("stat=%s", client.Stat())
			return
		}
	}
}

func handleCommand(log *log2.Log, name, params string) {
	log.Infof("command received: %s", name)
	switch name {
	case "Command_A", "Command_B":
		log.Infof("executing protocol for %s with parameters: %s", name, params)
	default:
		log.Errorf("command not recognized: %s", name)
	}
}

func mustReadConfig(log *log2.Log, path string) *appConfig {
	bs, err := ioutil.ReadFile(path)
	if err != nil {
		log.Fatal(errors.Annotatef(err, "config path=%s", path))
	}
	c := &appConfig{}
	if err := hcl.Unmarshal(bs, c); err != nil {
		log.Fatal(errors.Annotatef(err, "config unmarshal path=%s", path))
	}
	return c
}

func sdnotify(log *log2.Log, s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}
