package application

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"chat-gateway/middleware/ratelimit/domain"
)

// ExceededMessage monta o texto mostrado ao cliente quando a quota acaba.
func ExceededMessage(p domain.QuotaPolicy, remaining time.Duration) string {
	return fmt.Sprintf(
		"Rate limit exceeded. You have used %d prompts in the last %s hours. Please try again in approximately %s.",
		p.Limit, formatHours(p.Window), FormatRemaining(remaining),
	)
}

// FormatRemaining escreve o tempo restante como "1 hr 5 mins".
// Abaixo de um minuto vira "less than a minute"; caso contrário arredonda
// para cima no minuto.
func FormatRemaining(d time.Duration) string {
	if d < time.Minute {
		return "less than a minute"
	}
	total := int64((d + time.Minute - 1) / time.Minute)
	hours, mins := total/60, total%60

	parts := make([]string, 0, 2)
	if hours > 0 {
		parts = append(parts, strconv.FormatInt(hours, 10)+" hr")
	}
	if mins > 0 {
		parts = append(parts, strconv.FormatInt(mins, 10)+" mins")
	}
	return strings.Join(parts, " ")
}

func formatHours(d time.Duration) string {
	// sem notação científica; janelas em horas inteiras saem sem casas decimais
	return strconv.FormatFloat(d.Hours(), 'f', -1, 64)
}
