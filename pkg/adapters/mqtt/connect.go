package mqtt

import (
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connect opens a paho client to broker (for example tcp://localhost:1883).
// The client reconnects on its own; losing the broker is logged.
func Connect(broker, clientID string, timeout time.Duration, logger *slog.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetKeepAlive(10 * time.Second)
	opts.SetConnectTimeout(timeout)
	opts.AutoReconnect = true
	opts.CleanSession = true
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "broker", broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	if err := wait(client.Connect(), timeout); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}
	logger.Info("MQTT connected", "broker", broker, "client_id", clientID)
	return client, nil
}
