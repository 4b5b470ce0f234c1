// Package interfaces defines the core interfaces used throughout the application.
package interfaces

// DataHandler processes raw terminal data.
type DataHandler interface {
	HandleData(data []byte)
}

// StatusReporter reports notification delivery progress.
type StatusReporter interface {
	ReportSending()
	ReportSuccess()
	ReportFailure()
}

// ScreenEventHandler reacts to the wrapped program redrawing the screen.
type ScreenEventHandler interface {
	HandleScreenClear()
}
