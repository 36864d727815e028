package audio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gordonklaus/portaudio"
)

type Device struct {
	Index      int
	Name       string
	Channels   int
	SampleRate float64
	Default    bool
}

// InputDevices lists devices that can record. Index is the position in the
// portaudio device table, which is what NewRecorder expects. portaudio must
// be initialized.
func InputDevices() ([]Device, error) {
	all, err := portaudio.Devices()
	if err != nil {
		return nil, &DeviceError{Op: "list devices", Err: err}
	}
	def, _ := portaudio.DefaultInputDevice()

	var out []Device
	for i, d := range all {
		if d.MaxInputChannels < 1 {
			continue
		}
		out = append(out, Device{
			Index:      i,
			Name:       d.Name,
			Channels:   d.MaxInputChannels,
			SampleRate: d.DefaultSampleRate,
			Default:    def != nil && d.Name == def.Name,
		})
	}
	return out, nil
}

func resolveDevice(index int) (*portaudio.DeviceInfo, error) {
	if index < 0 {
		d, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, &DeviceError{Op: "default input", Err: err}
		}
		return d, nil
	}

	all, err := portaudio.Devices()
	if err != nil {
		return nil, &DeviceError{Op: "list devices", Err: err}
	}
	if index >= len(all) {
		return nil, &DeviceError{Op: "select device", Err: fmt.Errorf("no device #%d (have %d)", index, len(all))}
	}
	if all[index].MaxInputChannels < 1 {
		return nil, &DeviceError{Op: "select device", Err: errors.New(all[index].Name + " has no input channels")}
	}
	return all[index], nil
}

// ChooseDevice lists input devices on out and reads the chosen index from in.
// An empty answer picks the default device (-1).
func ChooseDevice(in io.Reader, out io.Writer) (int, error) {
	if err := portaudio.Initialize(); err != nil {
		return 0, &DeviceError{Op: "initialize", Err: err}
	}
	defer portaudio.Terminate()

	devs, err := InputDevices()
	if err != nil {
		return 0, err
	}
	if len(devs) == 0 {
		return 0, &DeviceError{Op: "list devices", Err: errors.New("no input devices")}
	}
	return pickDevice(devs, in, out)
}

func pickDevice(devs []Device, in io.Reader, out io.Writer) (int, error) {
	fmt.Fprintln(out, "Input devices:")
	for _, d := range devs {
		mark := " "
		if d.Default {
			mark = "*"
		}
		fmt.Fprintf(out, " %s %3d  %s (%d ch, %.0f Hz)\n", mark, d.Index, d.Name, d.Channels, d.SampleRate)
	}

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Device [default]: ")
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return 0, err
			}
			return -1, nil
		}
		answer := strings.TrimSpace(sc.Text())
		if answer == "" {
			return -1, nil
		}
		n, err := strconv.Atoi(answer)
		if err == nil {
			for _, d := range devs {
				if d.Index == n {
					return n, nil
				}
			}
		}
		fmt.Fprintf(out, "%q is not one of the listed devices\n", answer)
	}
}
