package producer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

// Message pairs an event with the channel it was published on. The topic is
// derived from the channel name, one topic per channel.
type Message struct {
	Channel string
	Event   models.Event
}

// Producer mirrors bus traffic to Kafka. Saga progress never depends on the
// broker acknowledging anything, hence sarama.AsyncProducer.
type Producer struct {
	log logger.Logger

	topicPrefix string
	messages    chan Message

	producer sarama.AsyncProducer
}

func New(
	ctx context.Context,
	log logger.Logger,
	brokerAddress []string,
	topicPrefix string,
) (*Producer, error) {
	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForLocal
	producerConfig.Producer.Compression = sarama.CompressionNone
	producerConfig.Producer.Return.Successes = true
	producerConfig.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokerAddress, producerConfig)
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			select {
			case sendErr, ok := <-producer.Errors():
				if !ok {
					return
				}

				log.Warn("failed to send message", logger.String("error", sendErr.Error()))
			case success, ok := <-producer.Successes():
				if !ok {
					return
				}

				log.Debug("successfully sent message", logger.String("topic", success.Topic))
			case <-ctx.Done():
				return
			}
		}
	}()

	return &Producer{
		log:         log,
		topicPrefix: topicPrefix,
		messages:    make(chan Message, 256),
		producer:    producer,
	}, nil
}

// Mirror enqueues an event for Kafka. It never blocks the bus: when the
// buffer is full the event is dropped with a warning, the outbox relay is
// the lossless path.
func (p *Producer) Mirror(channel string, event models.Event) {
	select {
	case p.messages <- Message{Channel: channel, Event: event}:
	default:
		p.log.Warn("mirror buffer full, dropping event",
			logger.String("channel", channel),
			logger.String("event_id", event.ID()),
		)
	}
}

func (p *Producer) Run(ctx context.Context) {
	const op = "brokers.kafka.producer.Run"

ProducerLoop:
	for {
		select {
		case message, ok := <-p.messages:
			if !ok {
				break ProducerLoop
			}

			topic := p.topicPrefix + message.Channel

			p.log.Debug(op, logger.String("send", fmt.Sprintf("%s #%s to kafka", topic, message.Event.ID())))
			bytes, err := json.Marshal(message.Event)
			if err != nil {
				p.log.Error(op, logger.String("failed to marshal event", err.Error()))
				continue
			}

			p.producer.Input() <- &sarama.ProducerMessage{
				Topic: topic,
				Key:   sarama.StringEncoder(message.Event.Saga()),
				Value: sarama.ByteEncoder(bytes),
			}
		case <-ctx.Done():
			break ProducerLoop
		}
	}
}

func (p *Producer) Close() error {
	close(p.messages)

	return p.producer.Close()
}
