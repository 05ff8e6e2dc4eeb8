package credits

import (
	"errors"
	"fmt"
)

// ErrInsufficientCredits — у организации недостаточно кредитов.
var ErrInsufficientCredits = errors.New("insufficient credits")

// InsufficientCreditsError — отказ в допуске с контекстом баланса.
type InsufficientCreditsError struct {
	Credits int // текущий баланс
	Cost    int // запрошенная стоимость
}

// Error реализует интерфейс error.
// Если кредитов меньше стоимости, сообщение включает нехватку.
func (e *InsufficientCreditsError) Error() string {
	if e.Credits < e.Cost {
		return fmt.Sprintf("insufficient credits: have %d, need %d (short %d)",
			e.Credits, e.Cost, e.Cost-e.Credits)
	}
	return fmt.Sprintf("insufficient credits: have %d, need more than %d", e.Credits, e.Cost)
}

// Unwrap возвращает базовую ошибку.
func (e *InsufficientCreditsError) Unwrap() error {
	return ErrInsufficientCredits
}
