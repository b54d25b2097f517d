// Package utils предоставляет вспомогательные функции для graceful shutdown.
//
// При SIGINT (Ctrl+C) или SIGTERM контекст прогона отменяется: пул воркеров
// перестаёт выдавать новые задачи, уже запущенные дорабатывают, а
// невыданные файлы получают вердикт ERROR. Экспорт всё равно выполняется.
package utils

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SetupGracefulShutdown устанавливает обработчик сигналов.
//
// Возвращает функцию которую следует вызвать через defer: она снимает
// обработчик и закрывает лог.
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer SetupGracefulShutdown(cancel)()
func SetupGracefulShutdown(cancel context.CancelFunc) func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigChan:
			Warn("Received signal, shutting down gracefully", "signal", sig.String())
			cancel()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(done)
		Close()
	}
}
