package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/hubertat/servicemaker"

	hydropi "github.com/SkullKill/MyHydroPi"
)

const defaultSampleInterval = "60s"

var (
	Version string
	Build   string

	config         = flag.String("config", "config.json", "path of the configuration file")
	flagInstall    = flag.Bool("install", false, "Install service in os")
	sampleInterval = flag.String("interval", defaultSampleInterval, "sampling round interval (time.Duration)")

	hydropiService = servicemaker.ServiceMaker{
		User:               "hydropi",
		UserGroups:         []string{"dialout"},
		ServicePath:        "/etc/systemd/system/hydropi.service",
		ServiceDescription: "MyHydroPi service: hydroponics sensor data logger. github.com/SkullKill/MyHydroPi",
		ExecDir:            "/srv/hydropi",
		ExecName:           "hydropi",
	}
)

func main() {
	log.Printf("MyHydroPi %s started\n", Version)
	flag.Parse()

	if *flagInstall {
		err := hydropiService.InstallService()
		if err != nil {
			panic(err)
		} else {
			log.Println("service installed!")
			return
		}
	}

	interval, err := time.ParseDuration(*sampleInterval)
	if err != nil {
		panic(err)
	}

	hp := &hydropi.HydroPi{}
	configFile, err := os.Open(*config)
	if err == nil {
		cBuff, err := io.ReadAll(configFile)
		if err != nil {
			log.Fatalf("failed reading config file: %v\n", err)
		}

		err = json.Unmarshal(cBuff, hp)
		if err != nil {
			log.Fatalf("failed unmarshalling json config: %v", err)
		}
	} else {
		log.Fatalf("can't find/open config file (%s), will terminate. Reason: \n%v\n", *config, err)
	}

	log.Println("will init sensors and outputs...")
	err = hp.Init()
	defer hp.Close()
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	log.Println("init OK!")

	if len(hp.HttpAddr) > 0 {
		log.Printf("starting status server on %s\n", hp.HttpAddr)
		go func() {
			log.Println(hp.StartStatusServer())
		}()
	}

	if len(hp.HkPin) == 8 {
		log.Println("Starting with HomeKit server")

		go hp.StartTicker(interval)
		log.Fatal(hp.StartHomeKit(context.Background()))
	} else {
		log.Println("HomeKit not configured, disabled")
		hp.StartTicker(interval)
	}
}
