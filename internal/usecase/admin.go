package usecase

import "github.com/V4T54L/notification-service/internal/domain"

// StatusProvider exposes the broker consumer's lifecycle state.
type StatusProvider interface {
	Status() domain.ConsumerStatus
}

// ConnectionCounter reports how many live client connections are held.
type ConnectionCounter interface {
	ConnectionCount() int
}

// AdminReport is the payload of the consumer status endpoint.
type AdminReport struct {
	Consumer    domain.ConsumerStatus `json:"consumer"`
	Connections int                   `json:"connections"`
}

// AdminUseCase provides the operator view of the running service.
type AdminUseCase struct {
	consumer StatusProvider
	conns    ConnectionCounter
}

// NewAdminUseCase creates a new AdminUseCase.
func NewAdminUseCase(consumer StatusProvider, conns ConnectionCounter) *AdminUseCase {
	return &AdminUseCase{consumer: consumer, conns: conns}
}

func (uc *AdminUseCase) Report() AdminReport {
	report := AdminReport{Consumer: uc.consumer.Status()}
	if uc.conns != nil {
		report.Connections = uc.conns.ConnectionCount()
	}
	return report
}
