// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"fmt"
	"net/http"

	"github.com/relabs-tech/env_telemetry/internal/app"
	"github.com/relabs-tech/env_telemetry/internal/bme280"
	"github.com/relabs-tech/env_telemetry/internal/config"
	"github.com/relabs-tech/env_telemetry/internal/sensors"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "./env_config.txt", "path to configuration file")
	flag.Parse()

	log.SetLevel(log.DebugLevel)
	log.Println("starting BME280 register debug tool (standalone)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	if cfg.BMEDriver == "periph" && !cfg.SimulatedData {
		log.Println("Note: BME_DRIVER=periph ignored, register access needs the native driver")
	}

	log.Println("Initializing BME280...")
	src, err := sensors.NewRegisterSource(cfg)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	defer src.Close()

	dev := src.Device()
	line := bme280.Line(cfg.BMEChipEnable)
	if _, ok := dev.Calibration(); ok {
		log.Printf("BME280 available on %s", line)
	} else {
		log.Printf("Warning: BME280 not available on %s, use init to retry", line)
	}

	http.HandleFunc("/ws", app.NewRegisterDebugHandler(dev, line))

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/register_debug.html")
	})

	addr := fmt.Sprintf(":%d", cfg.RegisterDebugPort)
	log.Printf("Register debug tool listening on %s", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
