package config

import (
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
)

func InitRabbitMQ(url string) (*amqp.Connection, error) {
	if url == "" {
		return nil, errors.New("RABBITMQ_URL is not set")
	}
	return amqp.Dial(url)
}
