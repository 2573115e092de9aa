// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/relabs-tech/env_telemetry/internal/bme280"
	"github.com/relabs-tech/env_telemetry/internal/sensors"
	log "github.com/sirupsen/logrus"
)

// RegisterDebugSession holds WebSocket connection state for register debugging
type RegisterDebugSession struct {
	Conn *websocket.Conn
	dev  *bme280.Dev
	line bme280.Line
	mu   *sync.Mutex
}

// RegisterResponse is every message sent to the register debug client.
type RegisterResponse struct {
	Type        string                 `json:"type"` // "register_data", "register_map", "calibration", "sample", "status", "error"
	Device      string                 `json:"device,omitempty"`
	Line        string                 `json:"line,omitempty"`
	Address     string                 `json:"addr,omitempty"`
	Value       string                 `json:"value,omitempty"`
	Registers   map[string]string      `json:"registers,omitempty"` // for bulk read
	Timestamp   string                 `json:"timestamp,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Status      string                 `json:"status,omitempty"`
	RegisterMap []sensors.RegisterInfo `json:"register_map,omitempty"`
	Calibration *bme280.Calibration    `json:"calibration,omitempty"`
	Sample      *bme280.Measurement    `json:"sample,omitempty"`
}

// NewRegisterDebugHandler returns the WebSocket handler of the register
// debug tool, bound to dev on line. Sessions share one device lock so a
// multi-step action never interleaves with another client.
func NewRegisterDebugHandler(dev *bme280.Dev, line bme280.Line) http.HandlerFunc {
	var mu sync.Mutex
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("register_debug: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		session := &RegisterDebugSession{Conn: conn, dev: dev, line: line, mu: &mu}
		session.serve()
	}
}

func (s *RegisterDebugSession) serve() {
	// Send register map on connection
	if err := s.sendRegisterMap(); err != nil {
		log.Printf("register_debug: error sending register map: %v", err)
		return
	}

	// Message loop
	for {
		var rawMsg map[string]interface{}
		err := s.Conn.ReadJSON(&rawMsg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("register_debug: websocket error: %v", err)
			}
			return
		}

		action, ok := rawMsg["action"].(string)
		if !ok {
			s.sendError("missing or invalid action field")
			continue
		}

		s.mu.Lock()
		// Route based on action
		switch action {
		case "get_map":
			s.sendRegisterMap()
		case "read":
			s.handleRead(rawMsg)
		case "read_all":
			s.handleReadAll()
		case "write":
			s.handleWrite(rawMsg)
		case "init":
			s.handleInit()
		case "calibration":
			s.handleCalibration()
		case "sample":
			s.handleSample()
		default:
			s.sendError(fmt.Sprintf("unknown action: %s", action))
		}
		s.mu.Unlock()
	}
}

func parseHexByte(s string) (byte, error) {
	var b byte
	if _, err := fmt.Sscanf(s, "0x%X", &b); err != nil {
		return 0, err
	}
	return b, nil
}

func (s *RegisterDebugSession) handleRead(rawMsg map[string]interface{}) {
	addr, _ := rawMsg["addr"].(string)
	if addr == "" {
		s.sendError("missing addr field")
		return
	}

	// Parse hex address
	addrByte, err := parseHexByte(addr)
	if err != nil {
		s.sendError(fmt.Sprintf("invalid address format: %s", addr))
		return
	}

	b, err := s.dev.ReadRegisters(addrByte, 1)
	if err != nil {
		s.sendError(fmt.Sprintf("read error: %v", err))
		return
	}

	s.send(RegisterResponse{
		Type:      "register_data",
		Address:   fmt.Sprintf("0x%02X", addrByte),
		Value:     fmt.Sprintf("0x%02X", b[0]),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *RegisterDebugSession) handleReadAll() {
	registers, err := sensors.DumpRegisters(s.dev)
	if err != nil {
		s.sendError(fmt.Sprintf("read all error: %v", err))
		return
	}

	// Convert to hex string map
	regMap := make(map[string]string)
	for addr, value := range registers {
		regMap[fmt.Sprintf("0x%02X", addr)] = fmt.Sprintf("0x%02X", value)
	}

	s.send(RegisterResponse{
		Type:      "register_data",
		Registers: regMap,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *RegisterDebugSession) handleWrite(rawMsg map[string]interface{}) {
	addr, _ := rawMsg["addr"].(string)
	valueStr, _ := rawMsg["value"].(string)
	if addr == "" || valueStr == "" {
		s.sendError("missing addr or value field")
		return
	}

	// Parse hex address and value
	addrByte, err := parseHexByte(addr)
	if err != nil {
		s.sendError(fmt.Sprintf("invalid address format: %s", addr))
		return
	}
	valueByte, err := parseHexByte(valueStr)
	if err != nil {
		s.sendError(fmt.Sprintf("invalid value format: %s", valueStr))
		return
	}

	if !sensors.WritableRegister(addrByte) {
		s.sendError(fmt.Sprintf("register 0x%02X is not writable", addrByte))
		return
	}
	if err := s.dev.WriteRegister(addrByte, valueByte); err != nil {
		s.sendError(fmt.Sprintf("write error: %v", err))
		return
	}
	log.WithFields(log.Fields{"addr": fmt.Sprintf("0x%02X", addrByte), "value": fmt.Sprintf("0x%02X", valueByte)}).Info("register_debug: wrote register")

	// Send confirmation
	s.send(RegisterResponse{
		Type:      "register_data",
		Address:   fmt.Sprintf("0x%02X", addrByte),
		Value:     fmt.Sprintf("0x%02X", valueByte),
		Timestamp: time.Now().Format(time.RFC3339),
		Message:   "write successful",
	})
}

func (s *RegisterDebugSession) handleInit() {
	if err := s.dev.Init(s.line); err != nil {
		s.sendError(fmt.Sprintf("init error: %v", err))
		return
	}
	s.send(RegisterResponse{
		Type:    "status",
		Device:  "bme280",
		Line:    s.line.String(),
		Status:  "initialized",
		Message: "BME280 reinitialized successfully",
	})
}

func (s *RegisterDebugSession) handleCalibration() {
	cal, ok := s.dev.Calibration()
	if !ok {
		s.sendError("calibration error: device not initialized")
		return
	}
	s.send(RegisterResponse{Type: "calibration", Device: "bme280", Calibration: &cal})
}

func (s *RegisterDebugSession) handleSample() {
	m, err := s.dev.ReadSensors()
	if err != nil {
		s.sendError(fmt.Sprintf("sample error: %v", err))
		return
	}
	s.send(RegisterResponse{
		Type:      "sample",
		Device:    "bme280",
		Sample:    &m,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *RegisterDebugSession) sendRegisterMap() error {
	return s.Conn.WriteJSON(RegisterResponse{
		Type:        "register_map",
		Device:      "bme280",
		Line:        s.line.String(),
		RegisterMap: sensors.BME280RegisterMap(),
	})
}

func (s *RegisterDebugSession) send(resp RegisterResponse) {
	if err := s.Conn.WriteJSON(resp); err != nil {
		log.Printf("register_debug: write error: %v", err)
	}
}

func (s *RegisterDebugSession) sendError(message string) {
	s.send(RegisterResponse{
		Type:    "error",
		Message: message,
	})
}
