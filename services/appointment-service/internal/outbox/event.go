package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	AggregateAppointment = "appointment"

	EventAppointmentBooked        = "appointment.booked.v1"
	EventAppointmentUpdated       = "appointment.updated.v1"
	EventAppointmentDeleted       = "appointment.deleted.v1"
	EventAppointmentStatusChanged = "appointment.status_changed.v1"
)
