package config

import (
	"testing"
	"time"

	"github.com/afikmenashe/alert-fanout/internal/events"
)

func validConfig() Config {
	return Config{
		CommonTopicID:          "arn:aws:sns:us-east-1:123456789012:common",
		EmergencyTopicID:       "arn:aws:sns:us-east-1:123456789012:emergency",
		TransportRegion:        "us-east-1",
		KafkaBrokers:           "localhost:9092",
		SubscriberChangesTopic: "users.changes",
		AlertChangesTopic:      "alerts.changes",
		ConsumerGroupID:        "alert-fanout",
		SubscriberTable:        "users",
		AlertTable:             "alerts",
		ProcessingTimeout:      30 * time.Second,
		RedeliveryDelay:        5 * time.Second,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		errMsg string
	}{
		{name: "valid config", modify: func(c *Config) {}},
		{name: "valid without redis", modify: func(c *Config) { c.RedisAddr = "" }},
		{name: "empty common topic", modify: func(c *Config) { c.CommonTopicID = "" }, errMsg: "common-topic-id cannot be empty"},
		{name: "empty emergency topic", modify: func(c *Config) { c.EmergencyTopicID = "" }, errMsg: "emergency-topic-id cannot be empty"},
		{name: "empty region", modify: func(c *Config) { c.TransportRegion = "" }, errMsg: "transport-region cannot be empty"},
		{name: "empty kafka brokers", modify: func(c *Config) { c.KafkaBrokers = "" }, errMsg: "kafka-brokers cannot be empty"},
		{name: "empty subscriber topic", modify: func(c *Config) { c.SubscriberChangesTopic = "" }, errMsg: "subscriber-changes-topic cannot be empty"},
		{name: "empty alert topic", modify: func(c *Config) { c.AlertChangesTopic = "" }, errMsg: "alert-changes-topic cannot be empty"},
		{
			name:   "same change topics",
			modify: func(c *Config) { c.AlertChangesTopic = c.SubscriberChangesTopic },
			errMsg: "subscriber-changes-topic and alert-changes-topic must differ",
		},
		{name: "empty consumer group id", modify: func(c *Config) { c.ConsumerGroupID = "" }, errMsg: "consumer-group-id cannot be empty"},
		{name: "empty subscriber table", modify: func(c *Config) { c.SubscriberTable = "" }, errMsg: "subscriber-table cannot be empty"},
		{name: "empty alert table", modify: func(c *Config) { c.AlertTable = "" }, errMsg: "alert-table cannot be empty"},
		{
			name:   "same tables",
			modify: func(c *Config) { c.AlertTable = c.SubscriberTable },
			errMsg: "subscriber-table and alert-table must differ",
		},
		{name: "zero timeout", modify: func(c *Config) { c.ProcessingTimeout = 0 }, errMsg: "processing-timeout must be positive"},
		{name: "negative redelivery delay", modify: func(c *Config) { c.RedeliveryDelay = -time.Second }, errMsg: "redelivery-delay cannot be negative"},
		{name: "negative max redeliveries", modify: func(c *Config) { c.MaxRedeliveries = -1 }, errMsg: "max-redeliveries cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.errMsg)
			}
			if err.Error() != tt.errMsg {
				t.Errorf("Validate() error = %q, want %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestConfig_ValidateTransport_IgnoresStreamFields(t *testing.T) {
	cfg := Config{
		CommonTopicID:    "common",
		EmergencyTopicID: "emergency",
		TransportRegion:  "eu-west-1",
	}
	if err := cfg.ValidateTransport(); err != nil {
		t.Errorf("ValidateTransport() error = %v, want nil", err)
	}
}

func TestConfig_Topics(t *testing.T) {
	cfg := validConfig()
	topics := cfg.Topics()

	if len(topics) != len(events.AllClasses) {
		t.Fatalf("len(Topics()) = %d, want %d", len(topics), len(events.AllClasses))
	}
	if topics[events.ClassCommon] != cfg.CommonTopicID {
		t.Errorf("Common topic = %q, want %q", topics[events.ClassCommon], cfg.CommonTopicID)
	}
	if topics[events.ClassEmergency] != cfg.EmergencyTopicID {
		t.Errorf("Emergency topic = %q, want %q", topics[events.ClassEmergency], cfg.EmergencyTopicID)
	}
}

func TestConfig_Tables(t *testing.T) {
	cfg := validConfig()
	cfg.SubscriberTable = "members"
	cfg.AlertTable = "bulletins"

	tables := cfg.Tables()
	if tables["members"] != events.SourceSubscriber {
		t.Errorf("members = %q, want Subscriber", tables["members"])
	}
	if tables["bulletins"] != events.SourceAlert {
		t.Errorf("bulletins = %q, want Alert", tables["bulletins"])
	}
}

func TestConfig_GroupFor(t *testing.T) {
	cfg := validConfig()

	subscribers := cfg.GroupFor("subscribers")
	alerts := cfg.GroupFor("alerts")

	if subscribers != "alert-fanout.subscribers" {
		t.Errorf("GroupFor(subscribers) = %q, want %q", subscribers, "alert-fanout.subscribers")
	}
	if alerts != "alert-fanout.alerts" {
		t.Errorf("GroupFor(alerts) = %q, want %q", alerts, "alert-fanout.alerts")
	}
	if subscribers == alerts {
		t.Error("both streams share one consumer group")
	}
}
