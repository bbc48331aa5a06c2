package logger

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// Conf configures the internal logger.
type Conf struct {
	Dir    string `yaml:"dir"`
	StdErr bool   `yaml:"stderr"`
	Level  string `yaml:"level"`
}

// Init configures the global logrus logger from the passed Conf.
// If a log dir is set, logs are appended to beacond.log inside it;
// stderr output can be kept in addition.
func Init(c Conf) error {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(
		&log.TextFormatter{
			FullTimestamp: true,
		},
	)

	var outputs []io.Writer
	if c.Dir != "" {
		f, err := os.OpenFile(
			filepath.Join(c.Dir, "beacond.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644,
		)
		if err != nil {
			return err
		}
		outputs = append(outputs, f)
	}
	if c.StdErr || len(outputs) == 0 {
		outputs = append(outputs, os.Stderr)
	}
	log.SetOutput(io.MultiWriter(outputs...))
	return nil
}
