package stage

// Health reports whether a pipeline stage can accept work, with a short
// operator-facing detail when it cannot.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy marks a stage as ready.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy marks a stage as not ready with an explanation.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
