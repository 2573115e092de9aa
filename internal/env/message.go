package env

import "time"

// Message is the telemetry payload published for every sample.
type Message struct {
	DeviceID         string    `json:"deviceId"`
	MessageID        int       `json:"messageId"`
	Temperature      float64   `json:"temperature"`
	Humidity         float64   `json:"humidity"`
	Pressure         float64   `json:"pressure"`
	TemperatureAlert bool      `json:"temperatureAlert"`
	Time             time.Time `json:"time"`
}

// NewMessage builds the payload for reading r. The alert is raised when the
// temperature is strictly above alertC.
func NewMessage(deviceID string, id int, r Reading, alertC float64, t time.Time) Message {
	return Message{
		DeviceID:         deviceID,
		MessageID:        id,
		Temperature:      r.Temperature,
		Humidity:         r.Humidity,
		Pressure:         r.Pressure,
		TemperatureAlert: r.Temperature > alertC,
		Time:             t.UTC(),
	}
}

// Reading returns the measurement carried by m.
func (m Message) Reading() Reading {
	return Reading{Temperature: m.Temperature, Humidity: m.Humidity, Pressure: m.Pressure}
}

// Device method names accepted on the command topic.
const (
	MethodStart = "start"
	MethodStop  = "stop"
)

// Command is a device method invocation received from the cloud side.
type Command struct {
	Method  string         `json:"method"`
	Payload map[string]any `json:"payload,omitempty"`
}

// CommandReply answers a Command. Status follows HTTP codes.
type CommandReply struct {
	Method  string `json:"method"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}
