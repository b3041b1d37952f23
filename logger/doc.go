// Package logger provides structured logging for speakerhub using zerolog.
//
// Loggers are component-scoped and accept structured fields as plain maps,
// so call sites stay free of zerolog's builder API.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("pipeline")
//	log.Info("stage completed", logger.Fields("job_id", id, "stage", "diarization"))
package logger
