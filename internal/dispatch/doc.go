// Package dispatch содержит клиент внешнего GPU job-сервиса.
//
// Протокол:
//   - POST /jobs/{workerId}/run          — запуск job, ответ {"id": "..."}
//   - GET  /jobs/{workerId}/status/{id}  — статус job: IN_PROGRESS | COMPLETED | FAILED
//
// Клиент ретраит только транзиентные ошибки запуска (сеть, 5xx);
// ответ неожиданной формы не ретраится. Опрос статуса отменяется
// через context и ограничен максимальной длительностью ожидания.
package dispatch
