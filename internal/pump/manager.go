// Package pump запускает вспомогательные процессы на время настройки (включение насоса,
// открытие байпаса) и останавливает их при выходе.
package pump

import (
	"os/exec"
	"strings"
	"sync"

	"github.com/shiwa/valve-autotune/internal/config"
	"github.com/shiwa/valve-autotune/internal/logger"
)

// Job — один вспомогательный процесс.
type Job struct {
	Path string   // исполняемый файл
	Args []string // аргументы
}

// FromConfig переводит секцию pump в список заданий.
func FromConfig(jobs []config.PumpJob) []Job {
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, Job{Path: j.Path, Args: j.Args})
	}
	return out
}

// Start запускает процессы. Одинаковые команды (path + args) запускаются один раз.
// Возвращает функцию stop(), которую нужно вызвать при выходе, и число запущенных процессов.
func Start(jobs []Job, quiet bool) (stop func(), started int) {
	if len(jobs) == 0 {
		return func() {}, 0
	}
	seen := make(map[string]bool)
	var cmds []*exec.Cmd
	for _, j := range jobs {
		if j.Path == "" {
			continue
		}
		key := j.Path + "\x00" + strings.Join(j.Args, "\x00")
		if seen[key] {
			continue
		}
		seen[key] = true
		cmd := exec.Command(j.Path, j.Args...)
		if !quiet {
			l := logger.Logger()
			cmd.Stdout = l
			cmd.Stderr = l
		}
		if err := cmd.Start(); err != nil {
			logger.Warn("pump start %s: %v", j.Path, err)
			continue
		}
		cmds = append(cmds, cmd)
		logger.Info("pump started: %s %s", j.Path, strings.Join(j.Args, " "))
	}
	var once sync.Once
	stop = func() {
		once.Do(func() {
			for _, cmd := range cmds {
				if cmd.Process != nil {
					_ = cmd.Process.Kill()
					_ = cmd.Wait()
				}
			}
		})
	}
	return stop, len(cmds)
}
