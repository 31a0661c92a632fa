// Package config provides configuration parsing and validation for the alert fan-out service.
package config

import (
	"fmt"
	"time"

	"github.com/afikmenashe/alert-fanout/internal/events"
)

// Config holds all configuration parameters for the alert fan-out service.
type Config struct {
	// Topic identifiers, one per alert class.
	CommonTopicID    string
	EmergencyTopicID string
	TransportRegion  string

	KafkaBrokers           string
	SubscriberChangesTopic string
	AlertChangesTopic      string

	// ConsumerGroupID is the prefix of the per-stream consumer groups.
	ConsumerGroupID string

	// SubscriberTable and AlertTable are the upstream table names carried by
	// change records.
	SubscriberTable string
	AlertTable      string

	ProcessingTimeout time.Duration
	RedeliveryDelay   time.Duration
	MaxRedeliveries   int

	// RedisAddr enables the metrics collector when set.
	RedisAddr string
	// DryRun logs notifications instead of sending them.
	DryRun bool
}

// ValidateTransport checks the fields needed to reach the notification transport.
func (c *Config) ValidateTransport() error {
	if c.CommonTopicID == "" {
		return fmt.Errorf("common-topic-id cannot be empty")
	}
	if c.EmergencyTopicID == "" {
		return fmt.Errorf("emergency-topic-id cannot be empty")
	}
	if c.TransportRegion == "" {
		return fmt.Errorf("transport-region cannot be empty")
	}
	return nil
}

// Validate checks that all required configuration fields are set and have valid values.
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if err := c.ValidateTransport(); err != nil {
		return err
	}
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.SubscriberChangesTopic == "" {
		return fmt.Errorf("subscriber-changes-topic cannot be empty")
	}
	if c.AlertChangesTopic == "" {
		return fmt.Errorf("alert-changes-topic cannot be empty")
	}
	if c.SubscriberChangesTopic == c.AlertChangesTopic {
		return fmt.Errorf("subscriber-changes-topic and alert-changes-topic must differ")
	}
	if c.ConsumerGroupID == "" {
		return fmt.Errorf("consumer-group-id cannot be empty")
	}
	if c.SubscriberTable == "" {
		return fmt.Errorf("subscriber-table cannot be empty")
	}
	if c.AlertTable == "" {
		return fmt.Errorf("alert-table cannot be empty")
	}
	if c.SubscriberTable == c.AlertTable {
		return fmt.Errorf("subscriber-table and alert-table must differ")
	}
	if c.ProcessingTimeout <= 0 {
		return fmt.Errorf("processing-timeout must be positive")
	}
	if c.RedeliveryDelay < 0 {
		return fmt.Errorf("redelivery-delay cannot be negative")
	}
	if c.MaxRedeliveries < 0 {
		return fmt.Errorf("max-redeliveries cannot be negative")
	}
	return nil
}

// Topics returns the topic table keyed by alert class.
func (c *Config) Topics() map[events.AlertClass]string {
	return map[events.AlertClass]string{
		events.ClassCommon:    c.CommonTopicID,
		events.ClassEmergency: c.EmergencyTopicID,
	}
}

// Tables maps the configured table names to their entities.
func (c *Config) Tables() map[string]events.SourceEntity {
	return map[string]events.SourceEntity{
		c.SubscriberTable: events.SourceSubscriber,
		c.AlertTable:      events.SourceAlert,
	}
}

// GroupFor returns the consumer group of one change stream.
func (c *Config) GroupFor(stream string) string {
	return c.ConsumerGroupID + "." + stream
}
