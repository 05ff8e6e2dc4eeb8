// Package orchestrator содержит контроллер жизненного цикла runs.
//
// Оркестратор:
//   - Получает новые runs из очереди RabbitMQ (event-driven)
//   - Периодически проверяет QUEUED runs в БД (polling fallback)
//   - Захватывает run условным переходом QUEUED → PROCESSING
//   - Строит граф pipeline и выполняет шаги по уровням готовности
//   - Обновляет progress и финализирует run (COMPLETE/ERROR)
//   - Уведомляет организацию об изменениях через Notifier
//
// Шаги одного уровня выполняются параллельно; переход к следующему
// уровню — барьер. Ошибка шага останавливает запуск новых уровней,
// уже идущие шаги дорабатывают (fail-fast).
package orchestrator
