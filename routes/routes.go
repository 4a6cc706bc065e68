package routes

// Routes package mounts the HTTP surface of the validation service
//
// Layout:
// - api.go: API routes (/v1/*), health probes, middleware
// - web.go: index and /docs, zap access log
//
// Usage:
// routes.SetupAllRoutes(router, routes.Controllers{...}, logger)
