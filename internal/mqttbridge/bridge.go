// Package mqttbridge mirrors the display model onto an MQTT broker and
// accepts commands from it, so home automation systems can drive the
// appliance without touching the REST API.
//
// Topics, under the configured prefix:
//
//	<prefix>/state           retained JSON display model, one message per reconciliation
//	<prefix>/set/power       "on" / "off"
//	<prefix>/set/mode        auto | cool | dry | heat | fan
//	<prefix>/set/temperature integer, in the operator's current unit
//	<prefix>/set/fan         low | med-low | medium | med-high | high | auto
//	<prefix>/set/vswing      "on" / "off"
//	<prefix>/set/hswing      "on" / "off"
//	<prefix>/set/unit        C | F
package mqttbridge

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/mholland/senville-sync/internal/codec"
	"github.com/mholland/senville-sync/internal/engine"
	"github.com/mholland/senville-sync/internal/model"
)

type Config struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
}

type Bridge struct {
	client mqtt.Client
	eng    *engine.Engine
	prefix string
	done   chan struct{}
}

// New connects to the broker and subscribes to the command topics. The
// connection auto-reconnects; subscriptions are re-established on reconnect.
func New(cfg Config, eng *engine.Engine) (*Bridge, error) {
	b := &Bridge{
		eng:    eng,
		prefix: cfg.TopicPrefix,
		done:   make(chan struct{}),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("sensync").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(b.onConnect)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	b.client = mqtt.NewClient(opts)
	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return b, nil
}

func (b *Bridge) onConnect(c mqtt.Client) {
	topic := b.prefix + "/set/#"
	if token := c.Subscribe(topic, 0, b.handleSet); token.Wait() && token.Error() != nil {
		log.Error().Err(token.Error()).Str("topic", topic).Msg("MQTT subscribe failed")
		return
	}
	log.Info().Str("topic", topic).Msg("MQTT bridge connected")
}

// Start begins mirroring reconciled display snapshots to the state topic.
func (b *Bridge) Start() {
	updates := b.eng.Subscribe()
	go func() {
		for {
			select {
			case <-b.done:
				return
			case dm := <-updates:
				b.publishState(dm)
			}
		}
	}()
}

func (b *Bridge) publishState(dm model.DisplayModel) {
	payload, err := json.Marshal(dm)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal display state")
		return
	}
	b.client.Publish(b.prefix+"/state", 0, true, payload)
}

func (b *Bridge) handleSet(_ mqtt.Client, msg mqtt.Message) {
	control, ok := controlFromTopic(b.prefix, msg.Topic())
	if !ok {
		log.Warn().Str("topic", msg.Topic()).Msg("Ignoring unrecognized MQTT topic")
		return
	}

	payload := strings.TrimSpace(string(msg.Payload()))
	if err := applySet(b.eng, control, payload); err != nil {
		log.Error().Err(err).Str("control", control).Str("payload", payload).Msg("Rejected MQTT command")
	}
}

func (b *Bridge) Close() {
	close(b.done)
	b.client.Disconnect(250)
}

// controlFromTopic extracts the control name from a command topic, e.g.
// "senville/set/power" -> "power".
func controlFromTopic(prefix, topic string) (string, bool) {
	control := strings.TrimPrefix(topic, prefix+"/set/")
	if control == topic || control == "" || strings.Contains(control, "/") {
		return "", false
	}
	return control, true
}

func applySet(eng *engine.Engine, control, payload string) error {
	switch control {
	case "power":
		on, err := parseOnOff(payload)
		if err != nil {
			return err
		}
		return eng.Issue(model.FieldPower, on)

	case "mode":
		return eng.Issue(model.FieldMode, payload)

	case "temperature":
		value, err := strconv.Atoi(payload)
		if err != nil {
			return fmt.Errorf("temperature takes an integer, got %q", payload)
		}
		celsius := value
		if eng.Unit() == model.UnitFahrenheit {
			celsius = codec.FahrenheitToCelsius(value)
		}
		if celsius < model.MinTargetTempC || celsius > model.MaxTargetTempC {
			return fmt.Errorf("temperature %d°C out of range %d-%d", celsius, model.MinTargetTempC, model.MaxTargetTempC)
		}
		return eng.Issue(model.FieldTargetTemp, celsius)

	case "fan":
		return eng.Issue(model.FieldFanSpeed, payload)

	case "vswing":
		on, err := parseOnOff(payload)
		if err != nil {
			return err
		}
		return eng.Issue(model.FieldVSwing, on)

	case "hswing":
		on, err := parseOnOff(payload)
		if err != nil {
			return err
		}
		return eng.Issue(model.FieldHSwing, on)

	case "unit":
		return eng.SetUnit(model.Unit(strings.ToUpper(payload)))
	}

	return fmt.Errorf("unknown control %q", control)
}

func parseOnOff(payload string) (bool, error) {
	switch strings.ToLower(payload) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on/off, got %q", payload)
}
