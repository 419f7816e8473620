// Package httputil provides HTTP helpers shared by the API handlers.
//
// # Responses
//
//	httputil.WriteJSON(w, http.StatusOK, summary)
//	httputil.WriteAccepted(w, map[string]string{"status": "accepted"})
//	httputil.WriteFieldError(w, "days", "must be between 1 and 365")
//
// # Request Parsing
//
//	days, err := httputil.ParseRequiredQueryInt(r, "days")
//	limit, err := httputil.ParseQueryInt(r, "limit", 10)
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RecoveryMiddleware(logger),
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//		httputil.CORSMiddleware(origins),
//		httputil.MaxBytesMiddleware(64*1024),
//	)(router)
package httputil
