// Package log builds the application's slog loggers.
//
// Every logger created here wraps its handler in a SanitizingHandler, which
// masks attributes that carry credentials (cookies, authorization headers,
// tokens) and removes userinfo and secret query parameters from URL values.
// Sites crawled with a login cookie or a proxy with a password therefore
// never leak those secrets into verbose logs.
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//	logger.Debug("fetch", "url", "https://user:pw@example.com/?token=x")
//	// url=https://example.com/?token=***REDACTED***
package log
