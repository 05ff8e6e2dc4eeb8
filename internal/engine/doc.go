// Package engine содержит граф выполнения pipeline.
//
// Включает:
//   - graph.go — построение DAG из prerequisites и вычисление
//     порядка выполнения (топологическая сортировка, уровни)
//
// Engine отвечает за понимание структуры pipeline и определение
// порядка выполнения шагов на основе их зависимостей. Рёбра хранятся
// в одном направлении (prerequisites); dependents выводятся при
// построении графа.
package engine
