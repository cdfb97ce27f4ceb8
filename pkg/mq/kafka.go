// Package mq Kafka 生产者
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/wyfcoding/payments/pkg/logger"
)

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers    []string
	MaxRetries int
	// 毫秒
	RetryBackoff int
	// 为 false 时不压缩
	EnableCompression bool
	// 批量等待时间，0 表示使用 DefaultBatchTimeout
	BatchTimeout time.Duration
}

// DefaultBatchTimeout 写入前凑批的最长等待
const DefaultBatchTimeout = 10 * time.Millisecond

// KafkaProducer Kafka 生产者
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewProducer 创建 Kafka 生产者
func NewProducer(cfg KafkaConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka producer requires at least one broker")
	}
	backoff := time.Duration(cfg.RetryBackoff) * time.Millisecond
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = DefaultBatchTimeout
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            cfg.MaxRetries,
		WriteBackoffMin:        backoff,
		WriteBackoffMax:        backoff * 10,
		BatchTimeout:           batchTimeout,
	}
	if cfg.EnableCompression {
		writer.Compression = kafka.Gzip
	}

	logger.Info(context.Background(), "kafka producer created", "brokers", cfg.Brokers)
	return &KafkaProducer{writer: writer}, nil
}

// SendMessage 以 JSON 编码 value 后发送，相同 key 落在同一分区
func (kp *KafkaProducer) SendMessage(ctx context.Context, topic, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := kp.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	}); err != nil {
		return fmt.Errorf("failed to write message to %s: %w", topic, err)
	}

	logger.Debug(ctx, "kafka message sent", "topic", topic, "key", key)
	return nil
}

// Close 关闭生产者，刷出缓冲中的消息
func (kp *KafkaProducer) Close() error {
	return kp.writer.Close()
}
