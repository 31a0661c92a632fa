package events

import (
	"strings"
	"time"

	"github.com/afikmenashe/alert-fanout/internal/failure"
)

// Attribute names, with the legacy names the user and alert tables use.
var (
	attrAddress    = []string{"address", "mobile"}
	attrAlertClass = []string{"alertClass", "type"}
	attrTitle      = []string{"title"}
	attrBody       = []string{"body", "description"}
	attrAlertID    = []string{"id", "alertId"}
)

// Subscriber is a phone number and the class of alerts it receives.
type Subscriber struct {
	Address    string
	AlertClass AlertClass
}

// Alert is one notification-worthy event.
type Alert struct {
	ID         string
	AlertClass AlertClass
	Title      string
	Body       string
	CreatedAt  time.Time
}

// Text is the notification body sent to subscribers: "{title} - {body}".
func (a Alert) Text() string {
	return a.Title + " - " + a.Body
}

// SubscriberFromSnapshot extracts a Subscriber from a Created snapshot.
func SubscriberFromSnapshot(s Snapshot) (Subscriber, error) {
	const op = "extract subscriber"

	address, err := requireString(op, s, attrAddress)
	if err != nil {
		return Subscriber{}, err
	}
	class, err := requireClass(op, s)
	if err != nil {
		return Subscriber{}, err
	}
	return Subscriber{Address: address, AlertClass: class}, nil
}

// AlertFromSnapshot extracts an Alert from a Created snapshot.
// id and createdAt are optional.
func AlertFromSnapshot(s Snapshot) (Alert, error) {
	const op = "extract alert"

	class, err := requireClass(op, s)
	if err != nil {
		return Alert{}, err
	}
	title, err := requireString(op, s, attrTitle)
	if err != nil {
		return Alert{}, err
	}
	body, err := requireString(op, s, attrBody)
	if err != nil {
		return Alert{}, err
	}

	alert := Alert{AlertClass: class, Title: title, Body: body}
	alert.ID, _ = s.String(attrAlertID...)
	alert.CreatedAt, _ = s.Time("createdAt")
	return alert, nil
}

func requireString(op string, s Snapshot, names []string) (string, error) {
	if !s.Has(names...) {
		return "", failure.Newf(failure.MalformedSnapshot, op, "missing attribute %q", names[0])
	}
	v, ok := s.String(names...)
	if !ok {
		return "", failure.Newf(failure.MalformedSnapshot, op, "attribute %q is not a string", names[0])
	}
	if strings.TrimSpace(v) == "" {
		return "", failure.Newf(failure.MalformedSnapshot, op, "attribute %q is empty", names[0])
	}
	return v, nil
}

func requireClass(op string, s Snapshot) (AlertClass, error) {
	raw, err := requireString(op, s, attrAlertClass)
	if err != nil {
		return "", err
	}
	class, ok := ParseAlertClass(raw)
	if !ok {
		return "", failure.Newf(failure.UnrecognizedAlertClass, op, "alert class %q", raw)
	}
	return class, nil
}
