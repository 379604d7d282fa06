package model

// Frame is a still image captured by a camera device
type Frame struct {
	Data     []byte
	MIMEType string
	Source   string
}
