package domain

import "time"

// Resource describes a fetched byte resource.
type Resource struct {
	URL         string        `json:"url"`
	ContentType string        `json:"content_type,omitempty"`
	Format      string        `json:"format,omitempty"`
	Size        int64         `json:"size"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	Latency     time.Duration `json:"latency"`
}

// IsReady reports whether the resource carries real image content.
// A 1x1 pixel is treated as a tracking/placeholder image.
func (r Resource) IsReady() bool {
	return r.Width > 1 && r.Height > 1
}
