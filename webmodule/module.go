package webmodule

// Config is the slice of platform configuration a module sees during
// Begin.
type Config struct {
	// DeviceName is the platform's display name.
	DeviceName string
	// BasePath is the path prefix this module was mounted under.
	BasePath string
	// StorageDriver is the name of the byte-store driver the module
	// should use for its own collections.
	StorageDriver string
	// DataDir is the platform data directory.
	DataDir string
}

// Module is a pluggable application unit. The platform calls Begin
// once before serving, Routes during route registration, and Handle on
// every supervision tick. Handle must not block; long work belongs in
// the module's own goroutines.
type Module interface {
	// Name returns the module's display name.
	Name() string
	// BasePath returns the path prefix the module wants, without a
	// leading slash.
	BasePath() string
	// Begin prepares the module. An error aborts platform startup.
	Begin(cfg Config) error
	// Routes registers the module's routes.
	Routes(reg RouteRegistrar) error
	// Handle runs one periodic tick.
	Handle()
}
