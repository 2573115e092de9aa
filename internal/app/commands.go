package app

import (
	"sync/atomic"

	"github.com/relabs-tech/env_telemetry/internal/env"
	log "github.com/sirupsen/logrus"
)

const (
	replySuccess  = "Successfully invoke device method"
	replyNotFound = "No method found"
)

// handleCommand applies a device method to the sending flag and builds the
// reply. Unknown methods leave the flag untouched.
func handleCommand(cmd env.Command, sending *atomic.Bool) env.CommandReply {
	log.Printf("Try to invoke method %s", cmd.Method)
	commandsHandled.Inc()

	switch cmd.Method {
	case env.MethodStart:
		sending.Store(true)
		log.Println("Start sending temperature and humidity data")
	case env.MethodStop:
		sending.Store(false)
		log.Println("Stop sending temperature and humidity data")
	default:
		log.Printf("No method %s found", cmd.Method)
		return env.CommandReply{Method: cmd.Method, Status: 404, Message: replyNotFound}
	}
	return env.CommandReply{Method: cmd.Method, Status: 200, Message: replySuccess}
}
