package events

// AlertClass is the priority class of an alert and of a subscriber's filter.
type AlertClass string

const (
	ClassCommon    AlertClass = "Common"
	ClassEmergency AlertClass = "Emergency"
)

// AllClasses lists every recognized class.
var AllClasses = []AlertClass{ClassCommon, ClassEmergency}

// ParseAlertClass maps a snapshot value to a class.
// Matching is case-sensitive: "common" is not recognized.
func ParseAlertClass(s string) (AlertClass, bool) {
	switch AlertClass(s) {
	case ClassCommon:
		return ClassCommon, true
	case ClassEmergency:
		return ClassEmergency, true
	default:
		return "", false
	}
}

func (c AlertClass) String() string {
	return string(c)
}
