// Package logger expone un logger Zap único para todo el proceso, con scoping por contexto.
//
// Inicialización (una vez, en cmd/quizzy):
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "quizzy"})
//	defer logger.Sync()
//
// En handlers y servicios:
//
//	log := logger.From(ctx)
//	log.Debug("exam token rejected", logger.Reason("bad_signature"))
//
// Las razones internas de un rechazo (firma, clave desconocida, padding...) sólo
// se loguean; nunca viajan en la respuesta HTTP.
package logger
