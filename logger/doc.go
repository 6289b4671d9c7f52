// Package logger provides structured logging for graphflow using zerolog.
//
// Fields are passed as maps so call sites stay independent of zerolog:
//
//	log := logger.WithComponent("engine")
//	log.Info("stage completed", map[string]interface{}{
//		logger.FieldGraphID: id,
//		logger.FieldStage:   2,
//	})
//
// Request and run identifiers stored with ContextWithRequestID and
// ContextWithRunID are attached by WithContext.
package logger
