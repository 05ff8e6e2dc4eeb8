// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - run.requested  — создан run, ожидает оркестратор
//   - entity.update  — сущность организации изменилась (для push-уведомлений)
//
// Exchanges:
//   - cascade.runs   — события runs
//   - cascade.events — уведомления клиентам
//   - cascade.dlq    — dead letter queue
package mq
