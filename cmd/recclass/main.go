// Recclass классифицирует электронные документы по срокам хранения.
//
// Использование:
//
//	./recclass [flags] <root> <output.csv>
//	./recclass -skip-analysis /mnt/share results.csv
//	./recclass -scan-only /mnt/share
//	./recclass -model phi2:latest -max-parallel 4 /mnt/share results.csv
//
// Без config.yaml работает с локальной Ollama (http://localhost:11434).
// Прогресс печатается в stderr строками "PROGRESS: i/n", итог в stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ilkoid/records-classifier/pkg/app"
	"github.com/ilkoid/records-classifier/pkg/events"
	"github.com/ilkoid/records-classifier/pkg/utils"
)

// Version: версия утилиты (заполняется при сборке)
var Version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run выполняет CLI и возвращает код выхода.
//
// 1: ошибка конфигурации, поиска файлов или экспорта.
// Ошибки отдельных файлов код выхода не меняют.
func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if opts.version {
		fmt.Fprintf(stdout, "recclass version %s\n", Version)
		return 0
	}

	// 1. Конфигурация: файл → флаги
	cfg, cfgPath, err := app.InitializeConfig(&app.DefaultConfigPathFinder{ConfigFlag: opts.configPath})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	opts.apply(cfg)

	// 2. Логгер
	logPath := cfg.Run.LogPath
	if logPath == "" {
		logPath = utils.DefaultLogPath()
	}
	if err := utils.InitLogger(logPath); err != nil {
		fmt.Fprintf(stderr, "Warning: failed to init logger: %v\n", err)
	}
	utils.SetDebug(cfg.App.Debug)
	if cfgPath != "" {
		utils.Info("Config loaded", "path", cfgPath)
	}

	// 3. Graceful shutdown (закрывает лог)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cleanup := utils.SetupGracefulShutdown(cancel)
	defer cleanup()

	// 4. Прогресс в stderr
	emitter := events.NewChanEmitter(64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		printProgress(emitter.Subscribe(), stderr)
	}()
	defer func() {
		emitter.Close()
		wg.Wait()
		if st := emitter.Stats(); st.Dropped > 0 {
			utils.Warn("Progress events dropped", "dropped", st.Dropped, "delivered", st.Delivered)
		}
	}()

	// 5. Компоненты
	comps, err := app.Initialize(cfg, emitter)
	if err != nil {
		utils.Error("Initialization failed", "error", err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	// 6. Только статистика
	if opts.scanOnly {
		st, err := comps.Runner.Scan()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "total=%d destroy=%d skipped=%d analyze=%d\n", st.Total, st.Destroy, st.Skip, st.Analyze)
		return 0
	}

	// 7. Прогон
	sum, err := comps.Runner.Run(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if sum == nil {
			return 1
		}

		// Экспорт не удался: результаты в памяти, пробуем запасной путь
		fallback := filepath.Join(os.TempDir(), filepath.Base(cfg.Run.Output))
		if rerr := comps.Runner.RetryExport(fallback); rerr != nil {
			fmt.Fprintf(stderr, "Error: export retry failed: %v\n", rerr)
		} else {
			fmt.Fprintf(stderr, "Results saved to %s\n", fallback)
		}
		return 1
	}

	fmt.Fprintln(stdout, sum.String())
	fmt.Fprintf(stdout, "results: %s\n", sum.Output)
	if sum.MirrorKey != "" {
		fmt.Fprintf(stdout, "mirror: %s/%s\n", cfg.S3.Bucket, sum.MirrorKey)
	}
	if sum.Cancelled {
		fmt.Fprintln(stderr, "Run cancelled: unprocessed files marked as ERROR")
	}
	return 0
}

// printProgress печатает события прогона до закрытия канала.
func printProgress(sub events.Subscriber, w io.Writer) {
	defer sub.Close()
	for ev := range sub.Events() {
		switch data := ev.Data.(type) {
		case events.StartedData:
			fmt.Fprintf(w, "Found %d files: %d decided by retention rule, %d to classify\n",
				data.Total, data.Decided, data.Reviewed)
		case events.ProgressData:
			fmt.Fprintln(w, data.Line())
		}
	}
}
