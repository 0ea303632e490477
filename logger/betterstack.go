package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NoticeLevel sits below debug for informational entries that only matter
// in the request trail.
const NoticeLevel zapcore.Level = -2

type logEntry struct {
	Timestamp  string         `json:"timestamp"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	TraceID    string         `json:"traceID"`
	Layer      string         `json:"layer"`
	Attributes map[string]any `json:"attributes"`
	Error      string         `json:"error,omitempty"`
}

// BetterStackLogStreamer streams request-scoped logs to a file in
// development and to Better Stack otherwise. Every entry is mirrored to the
// zap logger.
type BetterStackLogStreamer struct {
	sourceToken string
	environment string
	uploadURL   string
	logger      *zap.Logger
	client      *http.Client
	fileWriter  io.Writer
	fileMu      sync.Mutex
	inflight    sync.WaitGroup
}

func NewBetterStackLogStreamer(sourceToken, environment, uploadURL string, logger *zap.Logger) *BetterStackLogStreamer {
	streamer := &BetterStackLogStreamer{
		sourceToken: sourceToken,
		environment: environment,
		uploadURL:   uploadURL,
		logger:      logger,
	}

	if environment == "development" {
		f, err := os.OpenFile("app.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			logger.Error("Failed to open log file", zap.Error(err))
			streamer.fileWriter = os.Stderr
		} else {
			streamer.fileWriter = f
		}
	} else {
		streamer.client = &http.Client{Timeout: 10 * time.Second}
	}

	return streamer
}

// NewFileStreamer writes entries to w regardless of environment.
func NewFileStreamer(w io.Writer, logger *zap.Logger) *BetterStackLogStreamer {
	return &BetterStackLogStreamer{environment: "development", fileWriter: w, logger: logger}
}

func levelName(level zapcore.Level) string {
	switch level {
	case zapcore.ErrorLevel:
		return "ERROR"
	case zapcore.WarnLevel:
		return "WARN"
	case zapcore.InfoLevel:
		return "INFO"
	case NoticeLevel:
		return "NOTICE"
	case zapcore.DebugLevel:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// Log records one entry. Entries without a trace ID are dropped.
func (s *BetterStackLogStreamer) Log(level zapcore.Level, traceID string, message string, attributes map[string]any, layer string, err error) {
	if s == nil || traceID == "" {
		return
	}
	if attributes == nil {
		attributes = make(map[string]any)
	}

	entry := logEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Level:      levelName(level),
		Message:    message,
		TraceID:    traceID,
		Layer:      layer,
		Attributes: attributes,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	body, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		s.logger.Error("Failed to marshal log", zap.Error(marshalErr))
		return
	}

	switch {
	case s.fileWriter != nil:
		s.fileMu.Lock()
		_, writeErr := s.fileWriter.Write(append(body, '\n'))
		s.fileMu.Unlock()
		if writeErr != nil {
			s.logger.Error("Failed to write log to file", zap.Error(writeErr))
		}
	case s.uploadURL != "" && s.client != nil:
		s.send(body)
	}

	fields := []zap.Field{zap.String("traceID", traceID), zap.String("layer", layer), zap.Any("attributes", attributes)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if level < zapcore.DebugLevel {
		level = zapcore.DebugLevel
	}
	s.logger.Log(level, message, fields...)
}

func (s *BetterStackLogStreamer) send(body []byte) {
	req, err := http.NewRequest(http.MethodPost, s.uploadURL, bytes.NewReader(body))
	if err != nil {
		s.logger.Error("Failed to create HTTP request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.sourceToken)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		resp, err := s.client.Do(req)
		if err != nil {
			s.logger.Error("Failed to send log to Better Stack", zap.Error(err))
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			s.logger.Error("Unexpected response from Better Stack", zap.String("status", resp.Status))
		}
	}()
}

// Flush waits for uploads still in flight.
func (s *BetterStackLogStreamer) Flush() {
	if s != nil {
		s.inflight.Wait()
	}
}
