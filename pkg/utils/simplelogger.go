// Package utils предоставляет простой файловый логгер для прогона классификации.
//
// Логгер пишет в append-only .log файл (путь из run.log_path) строки вида
// [YYYY-MM-DD HH:MM:SS] LEVEL: message key1=value1 key2=value2.
// Thread-safe через sync.Mutex: воркеры пишут параллельно.
package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	logOut      io.Writer
	logFile     *os.File
	logMutex    sync.Mutex
	debugOn     bool
	initialized bool
)

// DefaultLogPath возвращает имя лог-файла по умолчанию:
// recclass-YYYY-MM-DD-HH-MM.log в текущей директории.
func DefaultLogPath() string {
	return fmt.Sprintf("recclass-%s.log", time.Now().Format("2006-01-02-15-04"))
}

// InitLogger создает/открывает лог-файл по указанному пути.
//
// Пустой path заменяется на DefaultLogPath(). Родительская директория создаётся.
// Повторный вызов без Close() ничего не делает.
func InitLogger(path string) error {
	logMutex.Lock()
	defer logMutex.Unlock()

	if initialized {
		return nil
	}

	if path == "" {
		path = DefaultLogPath()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create log dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logFile = f
	logOut = f
	initialized = true

	// Пишем напрямую без Info чтобы избежать deadlock (мьютекс уже захвачен)
	writeLine(formatLine("INFO", "Logger initialized", "file", path))
	return nil
}

// SetOutput направляет лог в произвольный writer (тесты, stderr).
//
// Закрывает ранее открытый файл. nil отключает логирование.
func SetOutput(w io.Writer) {
	logMutex.Lock()
	defer logMutex.Unlock()

	closeFileLocked()
	logOut = w
	initialized = w != nil
}

// SetDebug включает вывод Debug сообщений.
func SetDebug(enabled bool) {
	logMutex.Lock()
	defer logMutex.Unlock()
	debugOn = enabled
}

// Info - информационное сообщение.
func Info(msg string, keyvals ...any) {
	log("INFO", msg, keyvals...)
}

// Error - сообщение об ошибке.
func Error(msg string, keyvals ...any) {
	log("ERROR", msg, keyvals...)
}

// Debug - отладочное сообщение. Пишется только при SetDebug(true).
func Debug(msg string, keyvals ...any) {
	logMutex.Lock()
	on := debugOn
	logMutex.Unlock()
	if !on {
		return
	}
	log("DEBUG", msg, keyvals...)
}

// Warn - предупреждение.
func Warn(msg string, keyvals ...any) {
	log("WARN", msg, keyvals...)
}

// log - внутренняя функция записи в лог.
func log(level, msg string, keyvals ...any) {
	logMutex.Lock()
	defer logMutex.Unlock()

	if logOut == nil {
		return
	}
	writeLine(formatLine(level, msg, keyvals...))
}

// formatLine собирает строку лога.
//
// Формат: [YYYY-MM-DD HH:MM:SS] LEVEL: message key1=value1 key2=value2
// Непарный последний ключ отбрасывается.
func formatLine(level, msg string, keyvals ...any) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("[%s] %s: %s", timestamp, level, msg)

	for i := 0; i+1 < len(keyvals); i += 2 {
		line += fmt.Sprintf(" %v=%v", keyvals[i], keyvals[i+1])
	}

	return line + "\n"
}

// writeLine пишет строку; вызывается под logMutex.
// При ошибке записи fallback на stderr.
func writeLine(line string) {
	if _, err := io.WriteString(logOut, line); err != nil {
		fmt.Fprintf(os.Stderr, "%s", line)
		fmt.Fprintf(os.Stderr, "[LOGGER ERROR: WriteString failed: %v]\n", err)
		return
	}

	if logFile != nil {
		if err := logFile.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "[LOGGER WARNING: Sync failed: %v]\n", err)
		}
	}
}

func closeFileLocked() {
	if logFile != nil {
		if err := logFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "[LOGGER WARNING: Close failed: %v]\n", err)
		}
		logFile = nil
	}
}

// Close закрывает лог-файл.
//
// Вызывается через defer в main().
func Close() {
	logMutex.Lock()
	defer logMutex.Unlock()

	closeFileLocked()
	logOut = nil
	initialized = false
}
