// Package services holds cross-cutting helpers shared by the pipeline's
// external collaborators: sentinel error markers used for failure
// classification and context annotation utilities for correlation.
package services
