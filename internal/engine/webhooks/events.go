package webhooks

const (
	EventRideCreated       = "ride.created"
	EventRideStatusChanged = "ride.status_changed"
	EventRideCancelled     = "ride.cancelled"
	EventPaymentCreated    = "payment.created"
	EventPaymentUpdated    = "payment.updated"
)

var eventVocabulary = map[string]bool{
	EventRideCreated:       true,
	EventRideStatusChanged: true,
	EventRideCancelled:     true,
	EventPaymentCreated:    true,
	EventPaymentUpdated:    true,
}

func ValidEvent(name string) bool {
	return eventVocabulary[name]
}

func EventNames() []string {
	names := make([]string, 0, len(eventVocabulary))
	for name := range eventVocabulary {
		names = append(names, name)
	}
	return names
}
