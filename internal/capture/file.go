package capture

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Format names a recording file format.
type Format int

const (
	FormatLog Format = iota
	FormatPcap
)

func (f Format) String() string {
	if f == FormatPcap {
		return "pcapng"
	}
	return "candump"
}

// Options configures OpenFile.
type Options struct {
	Interface string // reported for pcap frames, which carry no interface name
	Policy    Policy
	Logger    zerolog.Logger
}

// FileSource is a Source backed by an open file.
type FileSource struct {
	Source
	file *os.File
}

// OpenFile opens a recording for replay. Close releases the file.
func OpenFile(path string, format Format, opts Options) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s recording", format)
	}

	var src Source
	switch format {
	case FormatPcap:
		iface := opts.Interface
		if iface == "" {
			iface = "pcap"
		}
		src, err = NewPcapReader(f, iface, opts.Logger)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "open %s", path)
		}
	default:
		src = NewLogReader(f, opts.Policy, opts.Logger)
	}
	return &FileSource{Source: src, file: f}, nil
}

func (s *FileSource) Close() error {
	return s.file.Close()
}
