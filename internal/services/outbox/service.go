package outbox

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

const fetchLimit = 100

type outBoxGetter interface {
	FetchUnprocessedMessages(ctx context.Context, limit int) ([]models.OutBoxMessage, error)
}

type outBoxRemover interface {
	Delete(ctx context.Context, ids []int64) error
}

// Service drains the outbox table into Kafka. Rows are deleted only after
// the sync producer acknowledged the whole batch, so a crash between send
// and delete re-sends the batch; consumers dedupe on (event_id, saga_id).
type Service struct {
	log           logger.Logger
	topicPrefix   string
	producer      sarama.SyncProducer
	outBoxGetter  outBoxGetter
	outBoxRemover outBoxRemover
}

func New(
	log logger.Logger,
	topicPrefix string,
	producer sarama.SyncProducer,
	outBoxGetter outBoxGetter,
	outBoxRemover outBoxRemover,
) *Service {
	return &Service{
		log:           log,
		topicPrefix:   topicPrefix,
		producer:      producer,
		outBoxGetter:  outBoxGetter,
		outBoxRemover: outBoxRemover,
	}
}

func (s *Service) Send(ctx context.Context) error {
	messages, err := s.outBoxGetter.FetchUnprocessedMessages(ctx, fetchLimit)
	if err != nil {
		return fmt.Errorf("fetch unprocessed messages: %w", err)
	}

	if len(messages) == 0 {
		return nil
	}

	saramaMessages := make([]*sarama.ProducerMessage, 0, len(messages))
	processedIDs := make([]int64, 0, len(messages))

	for _, msg := range messages {
		saramaMessages = append(saramaMessages, &sarama.ProducerMessage{
			Topic: s.topicPrefix + msg.Channel,
			Key:   sarama.StringEncoder(msg.SagaID),
			Value: sarama.ByteEncoder(msg.Payload),
		})

		processedIDs = append(processedIDs, msg.ID)
	}

	if err = s.producer.SendMessages(saramaMessages); err != nil {
		return fmt.Errorf("send messages: %w", err)
	}

	if err = s.outBoxRemover.Delete(ctx, processedIDs); err != nil {
		return fmt.Errorf("remove messages: %w", err)
	}

	s.log.Info("outbox batch relayed", logger.Int("count", len(messages)))

	return nil
}
