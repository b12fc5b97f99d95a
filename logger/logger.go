package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// ANSI color codes
const (
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

type Logger struct {
	*log.Logger
	mu    sync.Mutex
	debug bool // Flag to enable/disable debug logging
}

var (
	instance *Logger
	once     sync.Once
)

type LogEntry struct {
	Timestamp  string
	Level      string
	Location   string
	Package    string
	Function   string
	Message    string
	Properties map[string]interface{}
}

// GetLogger returns a singleton logger instance
func GetLogger() *Logger {
	once.Do(func() {
		instance = setupLogger()
	})
	return instance
}

func setupLogger() *Logger {
	// Create logs directory
	dir, _ := os.Getwd()
	logDir := filepath.Join(dir, "logs")
	os.MkdirAll(logDir, 0755)

	logFile := filepath.Join(logDir, "application.log")
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatal("Failed to open log file:", err)
	}

	return &Logger{
		Logger: log.New(file, "", 0),
		debug:  false,
	}
}

func (l *Logger) formatMessage(level, msg string, props map[string]interface{}) string {
	// Get caller information
	pc, file, line, _ := runtime.Caller(3)
	fn := runtime.FuncForPC(pc)

	// Load IST location
	ist, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		ist = time.UTC
	}

	entry := LogEntry{
		Timestamp:  time.Now().In(ist).Format("02-01-06:15:04:05"),
		Level:      level,
		Location:   fmt.Sprintf("%s:%d", filepath.Base(file), line),
		Package:    filepath.Base(filepath.Dir(file)),
		Function:   filepath.Base(fn.Name()),
		Message:    msg,
		Properties: props,
	}

	levelStr := entry.Level
	switch level {
	case "ERROR", "FATAL":
		levelStr = colorRed + level + colorReset
	case "WARN":
		levelStr = colorYellow + level + colorReset
	}

	logMsg := fmt.Sprintf("%s | %s | %s | %s | %s | %s",
		entry.Timestamp,
		levelStr,
		entry.Location,
		entry.Package,
		entry.Function,
		entry.Message,
	)

	if len(props) > 0 {
		propStr := ""
		for k, v := range props {
			if level == "ERROR" || level == "FATAL" {
				propStr += fmt.Sprintf(" %s=%s%v%s", k, colorRed, v, colorReset)
			} else {
				propStr += fmt.Sprintf(" %s=%v", k, v)
			}
		}
		logMsg += " |" + propStr
	}

	return logMsg
}

func (l *Logger) write(level, msg string, props ...map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var properties map[string]interface{}
	if len(props) > 0 {
		properties = props[0]
	}

	l.Println(l.formatMessage(level, msg, properties))
}

func (l *Logger) Info(msg string, props ...map[string]interface{}) {
	l.write("INFO", msg, props...)
}

func (l *Logger) Warn(msg string, props ...map[string]interface{}) {
	l.write("WARN", msg, props...)
}

func (l *Logger) Error(msg string, props ...map[string]interface{}) {
	l.write("ERROR", msg, props...)
}

func (l *Logger) Debug(msg string, props ...map[string]interface{}) {
	if !l.debug {
		return
	}
	l.write("DEBUG", msg, props...)
}

// Fatal logs the message and exits the process
func (l *Logger) Fatal(msg string, props ...map[string]interface{}) {
	l.write("FATAL", msg, props...)
	os.Exit(1)
}

// EnableDebug enables debug logging
func (l *Logger) EnableDebug() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debug = true
}

// DisableDebug disables debug logging
func (l *Logger) DisableDebug() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debug = false
}
