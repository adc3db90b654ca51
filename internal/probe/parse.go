package probe

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/pkg/errors"
)

var ErrEDID = errors.New("invalid EDID")

const (
	edidMinLength       = 128
	edidDescriptorStart = 54
	edidDescriptorLen   = 18
	edidDescriptors     = 4

	edidTagSerial = 0xFF
	edidTagName   = 0xFC
)

var edidHeader = []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}

// lines returns the non blank, trimmed lines in b.
func lines(b []byte) []string {
	out := []string{}

	s := bufio.NewScanner(bytes.NewReader(b))
	for s.Scan() {
		if l := strings.TrimSpace(s.Text()); l != "" {
			out = append(out, l)
		}
	}

	return out
}

// parseDmidecodeMemory returns the number of populated memory devices in dmidecode -t memory output.
func parseDmidecodeMemory(b []byte) int {
	var count int

	for _, l := range lines(b) {
		if !strings.HasPrefix(l, "Size:") {
			continue
		}

		v := strings.TrimSpace(strings.TrimPrefix(l, "Size:"))
		if v == "" || strings.HasPrefix(v, "No Module") || strings.HasPrefix(v, "Not Installed") {
			continue
		}

		count++
	}

	return count
}

// parseSmartHealth returns the overall health verdict in smartctl -H output.
func parseSmartHealth(b []byte) (string, bool) {
	prefixes := []string{
		// ATA
		"SMART overall-health self-assessment test result:",
		// SCSI
		"SMART Health Status:",
	}

	for _, l := range lines(b) {
		for _, p := range prefixes {
			if strings.HasPrefix(l, p) {
				return strings.TrimSpace(strings.TrimPrefix(l, p)), true
			}
		}
	}

	return "", false
}

// parseLspciDisplay returns the display controllers listed in lspci output.
func parseLspciDisplay(b []byte) []string {
	out := []string{}

	for _, l := range lines(b) {
		if strings.Contains(l, "VGA compatible controller") ||
			strings.Contains(l, "3D controller") ||
			strings.Contains(l, "Display controller") {
			out = append(out, l)
		}
	}

	return out
}

// parseEDID returns the monitor identified by an EDID blob.
//
// Attributes the blob does not carry are left empty.
func parseEDID(b []byte) (model.Monitor, error) {
	if len(b) < edidMinLength || !bytes.Equal(b[:len(edidHeader)], edidHeader) {
		return model.Monitor{}, ErrEDID
	}

	m := model.Monitor{Manufacturer: edidManufacturer(binary.BigEndian.Uint16(b[8:10]))}

	for i := 0; i < edidDescriptors; i++ {
		d := b[edidDescriptorStart+i*edidDescriptorLen : edidDescriptorStart+(i+1)*edidDescriptorLen]
		// display descriptors start with a zero pixel clock
		if d[0] != 0 || d[1] != 0 || d[2] != 0 {
			continue
		}

		switch d[3] {
		case edidTagName:
			m.Model = edidText(d[5:])
		case edidTagSerial:
			m.SerialNumber = edidText(d[5:])
		}
	}

	if m.SerialNumber == "" {
		if serial := binary.LittleEndian.Uint32(b[12:16]); serial != 0 {
			m.SerialNumber = strconv.FormatUint(uint64(serial), 10)
		}
	}

	return m, nil
}

// edidManufacturer decodes the three letter PNP id packed in five bit groups.
func edidManufacturer(v uint16) string {
	letters := []byte{
		byte((v>>10)&0x1f) + 'A' - 1,
		byte((v>>5)&0x1f) + 'A' - 1,
		byte(v&0x1f) + 'A' - 1,
	}

	for _, l := range letters {
		if l < 'A' || l > 'Z' {
			return ""
		}
	}

	return string(letters)
}

func edidText(b []byte) string {
	if i := bytes.IndexByte(b, 0x0A); i >= 0 {
		b = b[:i]
	}

	return strings.TrimSpace(string(b))
}

// wmiString decodes the zero padded uint16 code arrays WmiMonitorID returns.
func wmiString(codes []int) string {
	var sb strings.Builder

	for _, c := range codes {
		if c == 0 {
			continue
		}

		sb.WriteRune(rune(c))
	}

	return strings.TrimSpace(sb.String())
}
