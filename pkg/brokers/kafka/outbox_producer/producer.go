package outbox_producer

import (
	"github.com/IBM/sarama"
)

// New builds the synchronous producer behind the outbox relay. Unlike the
// mirror, the relay deletes rows only after the broker acknowledged every
// message, so it waits for all in-sync replicas.
func New(brokerAddress []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true

	return sarama.NewSyncProducer(brokerAddress, cfg)
}
