package engine

import (
	"sort"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
)

// Node — узел в графе pipeline.
type Node struct {
	// Step — шаг pipeline.
	Step *domain.PipelineStep

	// ID — идентификатор узла (совпадает со Step.ID).
	ID uuid.UUID

	// InDegree — количество входящих рёбер (prerequisites).
	InDegree int

	// Prerequisites — узлы, от которых зависит этот узел.
	Prerequisites []*Node

	// Dependents — узлы, которые зависят от этого узла.
	// Выводятся из prerequisites при построении графа.
	Dependents []*Node
}

// Graph — направленный ациклический граф шагов pipeline.
type Graph struct {
	// Nodes — все узлы графа (stepID → Node).
	Nodes map[uuid.UUID]*Node

	// Order — топологически отсортированный список узлов.
	// Порядок детерминирован: внутри уровня узлы идут по
	// возрастанию ID.
	Order []*Node

	// Levels — уровни готовности: уровень k содержит шаги, все
	// prerequisites которых лежат на уровнях < k. Шаги одного
	// уровня независимы и могут выполняться параллельно.
	Levels [][]*Node
}

// Build строит граф из шагов pipeline.
//
// Pipeline без шагов валиден: возвращается пустой граф.
// Возвращает ValidationError при ссылке на несуществующий шаг,
// самозависимости или дубликате ID, и CycleError при цикле.
func Build(steps []domain.PipelineStep) (*Graph, error) {
	g := &Graph{
		Nodes: make(map[uuid.UUID]*Node, len(steps)),
	}

	// Первый проход: создаём все узлы
	for i := range steps {
		step := &steps[i]
		if _, exists := g.Nodes[step.ID]; exists {
			return nil, NewValidationError(step.ID, "duplicate step ID", ErrDuplicateStepID)
		}
		g.Nodes[step.ID] = &Node{
			Step: step,
			ID:   step.ID,
		}
	}

	// Второй проход: связываем узлы по prerequisites,
	// попутно выводя dependents
	for i := range steps {
		step := &steps[i]
		node := g.Nodes[step.ID]

		for _, prereqID := range step.Prerequisites {
			if prereqID == step.ID {
				return nil, NewValidationError(step.ID, "step depends on itself", ErrSelfPrerequisite)
			}
			prereq, exists := g.Nodes[prereqID]
			if !exists {
				return nil, NewValidationError(step.ID,
					"references unknown prerequisite "+prereqID.String(), ErrMissingPrerequisite)
			}
			g.addEdge(prereq, node)
		}
	}

	// Вычисляем уровни и топологический порядок; здесь же
	// обнаруживаются циклы
	if err := g.computeLevels(); err != nil {
		return nil, err
	}

	return g, nil
}

// addEdge добавляет ребро prereq → node.
// Дубликаты рёбер игнорируются, чтобы избежать двойного учёта InDegree.
func (g *Graph) addEdge(prereq, node *Node) {
	for _, p := range node.Prerequisites {
		if p.ID == prereq.ID {
			return // уже связаны
		}
	}
	node.Prerequisites = append(node.Prerequisites, prereq)
	prereq.Dependents = append(prereq.Dependents, node)
	node.InDegree++
}

// computeLevels вычисляет уровни готовности (алгоритм Кана по уровням)
// и детерминированный топологический порядок.
//
// Возвращает CycleError, если не все узлы удалось разместить.
func (g *Graph) computeLevels() error {
	inDegree := make(map[uuid.UUID]int, len(g.Nodes))
	for id, node := range g.Nodes {
		inDegree[id] = node.InDegree
	}

	// Текущий фронт: узлы без неразмещённых prerequisites
	frontier := make([]*Node, 0)
	for _, node := range g.Nodes {
		if node.InDegree == 0 {
			frontier = append(frontier, node)
		}
	}

	g.Levels = make([][]*Node, 0)
	g.Order = make([]*Node, 0, len(g.Nodes))
	placed := 0

	for len(frontier) > 0 {
		// Внутри уровня порядок фиксируем по возрастанию ID:
		// один и тот же pipeline всегда даёт один и тот же план
		sortNodesByID(frontier)

		level := frontier
		g.Levels = append(g.Levels, level)
		g.Order = append(g.Order, level...)
		placed += len(level)

		next := make([]*Node, 0)
		for _, node := range level {
			for _, dep := range node.Dependents {
				inDegree[dep.ID]--
				if inDegree[dep.ID] == 0 {
					next = append(next, dep)
				}
			}
		}
		frontier = next
	}

	// Если не все узлы размещены — есть цикл; называем шаг с
	// наименьшим ID среди неразмещённых, чтобы ошибка была стабильной
	if placed != len(g.Nodes) {
		var culprit uuid.UUID
		first := true
		for id := range g.Nodes {
			if inDegree[id] > 0 && (first || lessUUID(id, culprit)) {
				culprit = id
				first = false
			}
		}
		return &CycleError{StepID: culprit}
	}

	return nil
}

// ReadySteps возвращает узлы, готовые к выполнению: все prerequisites
// завершены, сам узел ещё не завершён и не выполняется.
func (g *Graph) ReadySteps(completed, running map[uuid.UUID]bool) []*Node {
	ready := make([]*Node, 0)

	for _, node := range g.Order {
		if completed[node.ID] || running[node.ID] {
			continue
		}

		allDone := true
		for _, prereq := range node.Prerequisites {
			if !completed[prereq.ID] {
				allDone = false
				break
			}
		}
		if allDone {
			ready = append(ready, node)
		}
	}

	return ready
}

// Node возвращает узел по ID.
func (g *Graph) Node(id uuid.UUID) *Node {
	return g.Nodes[id]
}

// Size возвращает количество узлов в графе.
func (g *Graph) Size() int {
	return len(g.Nodes)
}

// IsComplete проверяет, все ли узлы завершены.
func (g *Graph) IsComplete(completed map[uuid.UUID]bool) bool {
	for id := range g.Nodes {
		if !completed[id] {
			return false
		}
	}
	return true
}

// sortNodesByID сортирует узлы по возрастанию ID (байтовое сравнение UUID).
func sortNodesByID(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		return lessUUID(nodes[i].ID, nodes[j].ID)
	})
}

// lessUUID сравнивает два UUID побайтно.
func lessUUID(a, b uuid.UUID) bool {
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
