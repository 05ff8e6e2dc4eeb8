// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (репозитории, gate, publisher, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - org_handler.go      — обработчики для /organizations
//   - tool_handler.go     — обработчики для /tools
//   - pipeline_handler.go — обработчики для /pipelines
//   - run_handler.go      — обработчики для /runs
//   - schedule_handler.go — обработчики для /schedules
//
// API предоставляет REST endpoints для управления организациями,
// tools, pipelines, runs и schedules.
package api
