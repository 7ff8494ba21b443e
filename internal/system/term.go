package system

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal сообщает, подключен ли stdout к терминалу. В терминале прогресс
// перерисовывается в одной строке через '\r', в логах идет построчно.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
