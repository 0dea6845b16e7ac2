package device

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/cozy-creator/img2img/internal/types"
)

const (
	CPU  = "cpu"
	CUDA = "cuda"
	MPS  = "mps"
)

// Device is a compute target tag such as "cpu" or "cuda:1".
type Device struct {
	Type  string
	Index int
}

func (d Device) String() string {
	if d.Type == CUDA && d.Index > 0 {
		return fmt.Sprintf("%s:%d", d.Type, d.Index)
	}

	return d.Type
}

func (d Device) IsAccelerator() bool {
	return d.Type != CPU
}

// Parse validates a device tag. Unknown tags are configuration errors.
func Parse(tag string) (Device, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))

	name, index, hasIndex := strings.Cut(tag, ":")
	switch name {
	case CPU, MPS:
		if hasIndex {
			return Device{}, types.Errorf(types.ErrConfiguration, "device %q does not take an index", tag)
		}
		return Device{Type: name}, nil
	case CUDA:
		if !hasIndex {
			return Device{Type: CUDA}, nil
		}

		n, err := strconv.Atoi(index)
		if err != nil || n < 0 {
			return Device{}, types.Errorf(types.ErrConfiguration, "invalid cuda device index %q", index)
		}
		return Device{Type: CUDA, Index: n}, nil
	default:
		return Device{}, types.Errorf(types.ErrConfiguration, "unsupported device %q", tag)
	}
}

// MustParse is like Parse but panics on error.
func MustParse(tag string) Device {
	d, err := Parse(tag)
	if err != nil {
		panic(err)
	}

	return d
}

var (
	lookPath = exec.LookPath
	stat     = os.Stat
)

const nvidiaDriverVersion = "/proc/driver/nvidia/version"

// Detect picks cuda when an NVIDIA driver is visible, otherwise cpu.
func Detect() Device {
	if _, err := stat(nvidiaDriverVersion); err == nil {
		return Device{Type: CUDA}
	}

	if _, err := lookPath("nvidia-smi"); err == nil {
		return Device{Type: CUDA}
	}

	return Device{Type: CPU}
}
