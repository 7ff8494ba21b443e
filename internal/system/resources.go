package system

import (
	"log"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// LoadBudget описывает, сколько кадров можно держать и грузить одновременно.
type LoadBudget struct {
	MaxConcurrent int
	Window        int
}

// memoryShare — доля доступной памяти, которую может занять окно предзагрузки.
const memoryShare = 4

// SuggestLoadBudget ограничивает окно предзагрузки доступной памятью и
// количество параллельных загрузок числом логических ядер.
// frameBytes — размер одного декодированного кадра (w*h*4).
func SuggestLoadBudget(frameBytes int64, window int) LoadBudget {
	budget := LoadBudget{MaxConcurrent: 4, Window: window}

	if n, err := cpu.Counts(true); err == nil && n > 0 {
		budget.MaxConcurrent = n
	} else if err != nil {
		log.Printf("[!] Не удалось определить число ядер: %v", err)
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Printf("[!] Не удалось получить сведения о памяти: %v", err)
		return budget
	}

	budget.Window = ClampWindow(window, frameBytes, vm.Available/memoryShare)
	return budget
}

// ClampWindow уменьшает окно так, чтобы window+1 кадров уместились в limit байт.
// Окно никогда не становится меньше 1.
func ClampWindow(window int, frameBytes int64, limit uint64) int {
	if frameBytes <= 0 || window <= 1 {
		return window
	}
	fit := int(limit/uint64(frameBytes)) - 1
	if fit < 1 {
		fit = 1
	}
	if fit < window {
		return fit
	}
	return window
}
