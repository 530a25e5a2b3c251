// valve-autotune — релейная автонастройка PID для клапана (ЦАП MCP4725 или последовательный контроллер).
//
// Клапан переключается между двумя положениями вокруг уставки; по установившимся колебаниям
// вычисляются предельный коэффициент Ku и период Pu, из них — Kp, Ki, Kd по выбранному правилу.
//
// Использование:
//
//	valve-autotune -config valve-autotune.yml          — настройка на оборудовании
//	valve-autotune -sim -virtual -setpoint 10           — прогон на модели процесса без ожидания
//	valve-autotune -rules                               — таблица правил
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/shiwa/valve-autotune/internal/autotune"
	"github.com/shiwa/valve-autotune/internal/config"
	"github.com/shiwa/valve-autotune/internal/logger"
	"github.com/shiwa/valve-autotune/pkg/tuning"
)

func main() {
	configPath := flag.String("config", "", "путь к конфигу YAML или TOML (по умолчанию valve-autotune.yml)")
	rule := flag.String("rule", "", "правило настройки (переопределяет config), см. -rules")
	setpoint := flag.Float64("setpoint", 0, "уставка (переопределяет config)")
	sim := flag.Bool("sim", false, "работать на модели процесса из секции sim вместо оборудования")
	virtual := flag.Bool("virtual", false, "с -sim: виртуальное время, прогон без ожидания")
	hold := flag.Bool("hold", false, "после успешной настройки удерживать уставку найденным PID")
	listen := flag.String("status", "", "адрес HTTP статуса и метрик, например :9110 (переопределяет config)")
	asJSON := flag.Bool("json", false, "вывести результат в JSON")
	rules := flag.Bool("rules", false, "показать таблицу правил и выйти")
	quiet := flag.Bool("quiet", false, "меньше вывода")
	flag.Parse()

	if *rules {
		printRules()
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "setpoint":
			cfg.Autotune.Setpoint = setpoint
		case "rule":
			cfg.Autotune.Rule = *rule
		case "status":
			cfg.Status.Listen = *listen
		case "hold":
			cfg.Hold.Enabled = *hold
		}
	})
	if *virtual && !*sim {
		log.Fatal("-virtual работает только вместе с -sim")
	}

	logger.Init("valve-autotune", cfg.Log.Level)
	logger.Quiet = *quiet

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("получен сигнал %v, завершение...", sig)
		cancel()
	}()

	res, err := tuning.Run(ctx, cfg, tuning.Options{
		Simulate: *sim,
		Virtual:  *virtual,
		Quiet:    *quiet,
	})
	if res != nil && res.State == autotune.StateSucceeded {
		printResult(res, *asJSON)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = "valve-autotune.yml"
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, nil
		}
	}
	return config.Load(path)
}

func printRules() {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RULE\tdP\tdI\tdD")
	for _, r := range autotune.Rules() {
		d, _ := autotune.RuleDivisors(r)
		fmt.Fprintf(w, "%s\t%g\t%g\t%g\n", r, d.P, d.I, d.D)
	}
	_ = w.Flush()
}

func printResult(res *tuning.Result, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
		return
	}
	fmt.Printf("run %s: Ku=%.6g Pu=%.6gs (%d samples)\n", res.RunID, res.UltimateGain, res.UltimatePeriod, res.Samples)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RULE\tKp\tKi\tKd\t")
	for _, r := range autotune.Rules() {
		p := res.Coefficients[r]
		mark := ""
		if r == res.Rule {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%.6g\t%.6g\t%.6g\t%s\n", r, p.Kp, p.Ki, p.Kd, mark)
	}
	_ = w.Flush()
}
