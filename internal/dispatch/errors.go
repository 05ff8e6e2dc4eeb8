package dispatch

import (
	"errors"
	"fmt"
)

// Ошибки клиента job-сервиса.
var (
	// ErrInvalidResponse — job-сервис вернул ответ неожиданной формы.
	// Не ретраится: сервис отвечает, но говорит не на том протоколе.
	ErrInvalidResponse = errors.New("invalid job service response")

	// ErrRetryExhausted — все попытки запуска job исчерпаны.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrJobTimeout — job не завершился за отведённое время.
	ErrJobTimeout = errors.New("job monitoring timed out")

	// ErrJobFailed — job завершился со статусом FAILED.
	ErrJobFailed = errors.New("job failed")
)

// JobFailedError — ошибка выполнения job с контекстом.
type JobFailedError struct {
	JobID  string // идентификатор job в сервисе
	Output string // вывод job, если сервис его вернул
}

// Error реализует интерфейс error.
func (e *JobFailedError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("job %s failed: %s", e.JobID, e.Output)
	}
	return fmt.Sprintf("job %s failed", e.JobID)
}

// Unwrap возвращает базовую ошибку.
func (e *JobFailedError) Unwrap() error {
	return ErrJobFailed
}

// StatusError — job-сервис вернул неуспешный HTTP-код.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error реализует интерфейс error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("job service returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Transient сообщает, стоит ли повторять запрос.
// Транзиентными считаются только 5xx — ошибка на стороне сервиса.
func (e *StatusError) Transient() bool {
	return e.StatusCode >= 500
}
