package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaiso/Cascade/internal/domain"
)

// TextExtractionExecutor — локальный executor для TEXT_EXTRACTION.
//
// Извлекает текст из переданного документа без обращения к внешнему
// сервису. Ожидает в input поле "document" со строковым содержимым.
type TextExtractionExecutor struct{}

// Execute извлекает и нормализует текст документа.
func (e *TextExtractionExecutor) Execute(ctx context.Context, sr *domain.StepRun) (*ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, ok := sr.Input["document"]
	if !ok {
		return &ExecutionResult{Error: "text extraction: input has no document"}, nil
	}
	document, ok := raw.(string)
	if !ok {
		return &ExecutionResult{Error: fmt.Sprintf("text extraction: document must be a string, got %T", raw)}, nil
	}

	text := extractText(document)
	if text == "" {
		return &ExecutionResult{Error: "text extraction: document contains no text"}, nil
	}

	return &ExecutionResult{Output: text}, nil
}

// extractText нормализует пробелы и убирает управляющие символы.
func extractText(document string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r < ' ' && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, document)

	return strings.Join(strings.Fields(cleaned), " ")
}
