package domain

import (
	"time"

	"github.com/google/uuid"
)

// ToolBase — идентификатор встроенного исполнителя tool.
//
// Base выбирает executor через dispatch-таблицу (tools.Registry),
// а не через строковые ветвления — новые виды tools добавляются
// регистрацией, без правок существующего кода.
type ToolBase string

const (
	// BaseTextExtraction — извлечение текста из документа. Выполняется локально.
	BaseTextExtraction ToolBase = "TEXT_EXTRACTION"

	// BaseTextToImage — генерация изображения по тексту. GPU job-сервис.
	BaseTextToImage ToolBase = "TEXT_TO_IMAGE"

	// BaseSummarization — суммаризация текста. GPU job-сервис.
	BaseSummarization ToolBase = "SUMMARIZATION"

	// BaseEmbedding — построение эмбеддингов. GPU job-сервис.
	BaseEmbedding ToolBase = "EMBEDDING"

	// BaseTextToSpeech — синтез речи. GPU job-сервис.
	BaseTextToSpeech ToolBase = "TEXT_TO_SPEECH"
)

// BuiltinBases — фиксированный набор встроенных tool bases в порядке
// провижининга каталога.
var BuiltinBases = []ToolBase{
	BaseTextExtraction,
	BaseTextToImage,
	BaseSummarization,
	BaseEmbedding,
	BaseTextToSpeech,
}

// IsBuiltin проверяет, что base входит в фиксированный набор.
func (b ToolBase) IsBuiltin() bool {
	for _, known := range BuiltinBases {
		if b == known {
			return true
		}
	}
	return false
}

// Tool — единица исполняемой функциональности внутри организации.
//
// Tool объявляет виды входа/выхода и base, выбирающий исполнителя.
// После того как tool использован шагом не-draft pipeline, он по
// соглашению неизменяем.
type Tool struct {
	// ID — уникальный идентификатор tool.
	ID uuid.UUID `json:"id"`

	// OrganizationID — организация-владелец.
	OrganizationID uuid.UUID `json:"organization_id"`

	// Name — человекочитаемое имя (например, "summarize-v1").
	Name string `json:"name"`

	// Base — встроенный исполнитель.
	Base ToolBase `json:"base"`

	// InputKind — вид входных данных (например, "text", "document").
	InputKind string `json:"input_kind"`

	// OutputKind — вид выходных данных (например, "text", "image", "audio").
	OutputKind string `json:"output_kind"`

	// CreatedAt — время создания tool.
	CreatedAt time.Time `json:"created_at"`
}
