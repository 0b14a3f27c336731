package profile

import (
	"fmt"
	"time"

	"github.com/prometheus/procfs"

	"github.com/Veraticus/spice-tally/internal/common"
)

// Reading is a point-in-time snapshot of process resource usage.
type Reading struct {
	At         time.Time
	Started    time.Time
	CPUSeconds float64
	RSSBytes   int
}

// Sampler reads process resource usage.
type Sampler interface {
	Read() (Reading, error)
}

// ProcSampler reads the current process from /proc.
type ProcSampler struct {
	fs procfs.FS
}

// NewProcSampler opens the default proc filesystem.
func NewProcSampler() (*ProcSampler, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrResourceMeasurement, err)
	}
	return &ProcSampler{fs: fs}, nil
}

// Read samples CPU time, resident memory and start time of this process.
func (s *ProcSampler) Read() (Reading, error) {
	proc, err := s.fs.Self()
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %w", common.ErrResourceMeasurement, err)
	}

	stat, err := proc.Stat()
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %w", common.ErrResourceMeasurement, err)
	}

	started, err := stat.StartTime()
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %w", common.ErrResourceMeasurement, err)
	}

	return Reading{
		At:         time.Now(),
		Started:    time.Unix(0, int64(started*float64(time.Second))),
		CPUSeconds: stat.CPUTime(),
		RSSBytes:   stat.ResidentMemory(),
	}, nil
}

// unavailableSampler is used when /proc cannot be opened.
type unavailableSampler struct {
	err error
}

func (u unavailableSampler) Read() (Reading, error) {
	return Reading{}, u.err
}
