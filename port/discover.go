package port

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ayo-electronics/t0ve-hostlink/internal/constants"
)

// Candidate is one discovered tty device and the USB serial-number
// descriptor attached to it.
type Candidate struct {
	DevicePath   string
	SerialNumber string
}

// Discoverer enumerates candidate serial devices and opens the one
// matching a node's regex. Swappable so tests never touch a real tty.
type Discoverer interface {
	Enumerate() ([]Candidate, error)
	Open(devicePath string, bufferSize int) (SerialHandle, error)
}

// sysfsDiscoverer enumerates /sys/class/tty for USB-backed serial
// devices and opens them via termios, matching spec.md §4.1's
// discovery algorithm: "enumerate all available COM/tty ports, compute
// each device's serial-number descriptor, open at 115200 8N1".
type sysfsDiscoverer struct{}

// NewSysfsDiscoverer returns the production Discoverer backed by Linux
// sysfs enumeration and golang.org/x/sys/unix termios ioctls.
func NewSysfsDiscoverer() Discoverer {
	return sysfsDiscoverer{}
}

func (sysfsDiscoverer) Enumerate() ([]Candidate, error) {
	entries, err := os.ReadDir("/sys/class/tty")
	if err != nil {
		return nil, fmt.Errorf("enumerate tty devices: %w", err)
	}

	var candidates []Candidate
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "ttyUSB") && !strings.HasPrefix(name, "ttyACM") {
			continue
		}
		serial, err := readUSBSerial(name)
		if err != nil {
			continue
		}
		candidates = append(candidates, Candidate{
			DevicePath:   filepath.Join("/dev", name),
			SerialNumber: serial,
		})
	}
	return candidates, nil
}

// readUSBSerial reads the USB device's serial attribute through the
// sysfs tty device symlink, e.g.
// /sys/class/tty/ttyUSB0/device/../serial for FTDI-style adapters.
func readUSBSerial(ttyName string) (string, error) {
	path := filepath.Join("/sys/class/tty", ttyName, "device", "..", "serial")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (sysfsDiscoverer) Open(devicePath string, bufferSize int) (SerialHandle, error) {
	// No O_NONBLOCK: spec.md §4.1's RX worker relies on VMIN/VTIME
	// (configured below) to block for a short read timeout. Opening
	// O_NONBLOCK would make read() return EAGAIN immediately instead,
	// which rxLoop's isTransientReadError only treats as "no data yet",
	// so the RX worker would spin on short sleeps instead of blocking.
	fd, err := unix.Open(devicePath, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", devicePath, err)
	}

	h := &unixSerialHandle{fd: fd, path: devicePath}
	if err := h.configure(constants.ReadTimeout); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("configure %s: %w", devicePath, err)
	}

	// Best-effort buffer resize; failure is non-fatal per spec.md §4.1.
	_ = h.trySetBufferSize(bufferSize)

	return h, nil
}

// unixSerialHandle implements SerialHandle atop a raw fd configured
// via termios, matching the 115200 8N1 / DTR+RTS / short-read-timeout
// contract of spec.md §6.
type unixSerialHandle struct {
	fd   int
	path string
}

func (h *unixSerialHandle) configure(readTimeout time.Duration) error {
	termios, err := unix.IoctlGetTermios(h.fd, unix.TCGETS)
	if err != nil {
		return err
	}

	termios.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CRTSCTS
	termios.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL
	termios.Iflag &^= unix.IXON | unix.IXOFF | unix.IXANY | unix.ICRNL | unix.INLCR
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ICANON | unix.ECHO | unix.ECHOE | unix.ISIG
	termios.Ispeed = unix.B115200
	termios.Ospeed = unix.B115200

	// VMIN=0, VTIME in deciseconds implements the ~100ms short-read
	// timeout the RX worker relies on.
	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = uint8(readTimeout / (100 * time.Millisecond))

	return unix.IoctlSetTermios(h.fd, unix.TCSETS, termios)
}

// trySetBufferSize is a best-effort attempt to enlarge the kernel's
// tty input buffer; most Linux USB-serial drivers don't expose a
// resize ioctl, so failures here are expected and swallowed by the
// caller.
func (h *unixSerialHandle) trySetBufferSize(bytes int) error {
	if bytes <= 0 {
		return nil
	}
	return unix.IoctlSetInt(h.fd, unix.TIOCSSERIAL, bytes)
}

func (h *unixSerialHandle) Read(p []byte) (int, error) {
	n, err := unix.Read(h.fd, p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, nil
	}
	return n, nil
}

func (h *unixSerialHandle) Write(p []byte) (int, error) {
	return unix.Write(h.fd, p)
}

func (h *unixSerialHandle) Close() error {
	return unix.Close(h.fd)
}

func (h *unixSerialHandle) SetDTR(on bool) error {
	return h.setModemBit(unix.TIOCM_DTR, on)
}

func (h *unixSerialHandle) SetRTS(on bool) error {
	return h.setModemBit(unix.TIOCM_RTS, on)
}

func (h *unixSerialHandle) setModemBit(bit int, on bool) error {
	ioctlNum := unix.TIOCMBIC
	if on {
		ioctlNum = unix.TIOCMBIS
	}
	return unix.IoctlSetInt(h.fd, uint(ioctlNum), bit)
}

func (h *unixSerialHandle) Flush() error {
	return unix.IoctlSetInt(h.fd, unix.TCFLSH, unix.TCIFLUSH)
}

// compileSerialRegex builds the regexp for a node index, per spec.md
// §6's default patterns.
func compileSerialRegex(nodeIndex string) (*regexp.Regexp, error) {
	if nodeIndex == "Any" {
		return regexp.MustCompile(constants.AnyNodeRegex), nil
	}
	return regexp.Compile(fmt.Sprintf(constants.NodeRegexTemplate, fmt.Sprintf("%02s", nodeIndex)))
}
