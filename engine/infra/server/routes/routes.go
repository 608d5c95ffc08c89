package routes

// Version returns the current API version string used in routing.
func Version() string {
	return "v1"
}

// Base returns the versioned API base path (e.g., "/v1").
func Base() string {
	return "/" + Version()
}

// Explanations returns the explanations base path (e.g., "/v1/explanations").
func Explanations() string {
	return Base() + "/explanations"
}

// Internal returns the base path for service-to-service endpoints.
func Internal() string {
	return "/internal"
}

// Health returns the liveness probe path.
func Health() string {
	return "/health"
}

// Metrics returns the Prometheus exposition path.
func Metrics() string {
	return "/metrics"
}
