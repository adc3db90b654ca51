package probe

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner returns canned output keyed by the command line.
type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	key := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, key)

	for prefix, err := range f.errs {
		if strings.HasPrefix(key, prefix) {
			return []byte(f.outputs[prefix]), err
		}
	}

	for prefix, out := range f.outputs {
		if strings.HasPrefix(key, prefix) {
			return []byte(out), nil
		}
	}

	return nil, errors.New(name + ": executable file not found in $PATH")
}

func testEDID(t *testing.T, name, serial string, numericSerial uint32) []byte {
	t.Helper()

	b := make([]byte, edidMinLength)
	copy(b, edidHeader)

	// DEL
	b[8], b[9] = 0x10, 0xAC
	b[12] = byte(numericSerial)
	b[13] = byte(numericSerial >> 8)
	b[14] = byte(numericSerial >> 16)
	b[15] = byte(numericSerial >> 24)

	descriptor := func(idx int, tag byte, text string) {
		d := b[edidDescriptorStart+idx*edidDescriptorLen:]
		d[3] = tag
		copy(d[5:edidDescriptorLen], append([]byte(text), 0x0A, 0x20, 0x20))
	}

	// first descriptor holds timings
	b[edidDescriptorStart] = 0x01

	if name != "" {
		descriptor(1, edidTagName, name)
	}

	if serial != "" {
		descriptor(2, edidTagSerial, serial)
	}

	return b
}

func TestDetect(t *testing.T) {
	assert.Equal(t, PlatformWindows, Detect("windows"))
	assert.Equal(t, PlatformLinux, Detect("linux"))
	assert.Equal(t, PlatformOther, Detect("darwin"))
	assert.Equal(t, PlatformOther, Detect("plan9"))

	assert.IsType(t, &Other{}, ForPlatform(PlatformOther, nil))
	assert.IsType(t, &Linux{}, ForPlatform(PlatformLinux, &fakeRunner{}))
	assert.IsType(t, &Windows{}, ForPlatform(PlatformWindows, &fakeRunner{}))
}

func TestParseEDID(t *testing.T) {
	m, err := parseEDID(testEDID(t, "DELL P2419H", "CFV9N93", 0))
	require.NoError(t, err)
	assert.Equal(t, model.Monitor{Manufacturer: "DEL", Model: "DELL P2419H", SerialNumber: "CFV9N93"}, m)

	m, err = parseEDID(testEDID(t, "", "", 16843009))
	require.NoError(t, err)
	assert.Equal(t, model.Monitor{Manufacturer: "DEL", SerialNumber: "16843009"}, m)

	_, err = parseEDID([]byte{0x00, 0xFF})
	assert.ErrorIs(t, err, ErrEDID)

	bad := testEDID(t, "x", "y", 0)
	bad[1] = 0x00
	_, err = parseEDID(bad)
	assert.ErrorIs(t, err, ErrEDID)
}

func TestParseDmidecodeMemory(t *testing.T) {
	out := `# dmidecode 3.4
Handle 0x0040, DMI type 17, 92 bytes
Memory Device
	Total Width: 64 bits
	Size: 8 GB
	Non-Volatile Size: None
	Locator: DIMM A

Handle 0x0041, DMI type 17, 92 bytes
Memory Device
	Size: No Module Installed
	Locator: DIMM B

Handle 0x0042, DMI type 17, 92 bytes
Memory Device
	Size: 8 GB
	Locator: DIMM C
`
	assert.Equal(t, 2, parseDmidecodeMemory([]byte(out)))
	assert.Equal(t, 0, parseDmidecodeMemory(nil))
}

func TestParseSmartHealth(t *testing.T) {
	verdict, ok := parseSmartHealth([]byte("smartctl 7.3\n=== START OF READ SMART DATA SECTION ===\nSMART overall-health self-assessment test result: PASSED\n"))
	require.True(t, ok)
	assert.Equal(t, "PASSED", verdict)

	verdict, ok = parseSmartHealth([]byte("SMART Health Status: OK\n"))
	require.True(t, ok)
	assert.Equal(t, "OK", verdict)

	_, ok = parseSmartHealth([]byte("Unable to detect device type\n"))
	assert.False(t, ok)
}

func TestParseLspciDisplay(t *testing.T) {
	out := `00:00.0 Host bridge: Intel Corporation Device 9a14
00:02.0 VGA compatible controller: Intel Corporation TigerLake-LP GT2 [Iris Xe Graphics]
01:00.0 3D controller: NVIDIA Corporation TU117M
`
	assert.Equal(t, []string{
		"00:02.0 VGA compatible controller: Intel Corporation TigerLake-LP GT2 [Iris Xe Graphics]",
		"01:00.0 3D controller: NVIDIA Corporation TU117M",
	}, parseLspciDisplay([]byte(out)))
}

func TestWMIString(t *testing.T) {
	assert.Equal(t, "DEL", wmiString([]int{68, 69, 76, 0, 0}))
	assert.Equal(t, "", wmiString(nil))
}

func TestLinuxProbe(t *testing.T) {
	sysfs := fstest.MapFS{
		"class/dmi/id/sys_vendor":                {Data: []byte("LENOVO\n")},
		"class/dmi/id/product_name":              {Data: []byte("20S0CTO1WW\n")},
		"class/dmi/id/product_serial":            {Data: []byte("PF2ABCDE\n")},
		"block/sda":                              {Data: []byte{}},
		"block/loop0":                            {Data: []byte{}},
		"class/drm/card0-eDP-1/edid":             {Data: testEDID(t, "LEN40BA", "", 0)},
		"class/drm/card0-HDMI-A-1/edid":          {Data: []byte{}},
		"class/drm/card0-DP-1/edid":              {Data: testEDID(t, "DELL P2419H", "CFV9N93", 0)},
		"class/drm/card0-DP-1/status":            {Data: []byte("connected\n")},
		"class/drm/renderD128/dev":               {Data: []byte("226:128\n")},
		"class/drm/card0-Virtual-1/edid-garbage": {Data: []byte("x")},
	}

	runner := &fakeRunner{
		outputs: map[string]string{
			"dmidecode -t memory": "Memory Device\n\tSize: 16 GB\nMemory Device\n\tSize: No Module Installed\n",
			"smartctl -H /dev/sda": "SMART overall-health self-assessment test result: PASSED\n",
			"lspci":                "00:02.0 VGA compatible controller: Intel Corporation UHD Graphics\n",
			"dpkg-query -W":        "bash\ncoreutils\n\nzsh\n",
		},
	}

	p := NewLinux(runner, sysfs)
	ctx := context.Background()

	assert.Equal(t, PlatformLinux, p.Platform())

	serial, err := p.SerialNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "PF2ABCDE", serial)

	dm, err := p.DeviceModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "LENOVO 20S0CTO1WW", dm)

	slots, err := p.RAMSlots(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, slots)

	health, err := p.StorageHealth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sda: PASSED", health)
	assert.NotContains(t, runner.calls, "smartctl -H /dev/loop0")

	gpus, err := p.GPUs(ctx)
	require.NoError(t, err)
	assert.Len(t, gpus, 1)

	_, err = p.InstalledUpdates(ctx)
	assert.ErrorIs(t, err, ErrNotApplicable)

	software, err := p.InstalledSoftware(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bash", "coreutils", "zsh"}, software)

	monitors, err := p.Monitors(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.Monitor{
		{Manufacturer: "DEL", Model: "LEN40BA"},
		{Manufacturer: "DEL", Model: "DELL P2419H", SerialNumber: "CFV9N93"},
	}, monitors)
}

func TestLinuxProbeFailures(t *testing.T) {
	runner := &fakeRunner{
		outputs: map[string]string{"rpm -qa": "kernel\nglibc\n"},
	}

	p := NewLinux(runner, fstest.MapFS{})
	ctx := context.Background()

	_, err := p.SerialNumber(ctx)
	assert.ErrorIs(t, err, ErrProbe)

	_, err = p.DeviceModel(ctx)
	assert.ErrorIs(t, err, ErrProbe)

	_, err = p.RAMSlots(ctx)
	assert.ErrorIs(t, err, ErrProbe)

	_, err = p.StorageHealth(ctx)
	assert.ErrorIs(t, err, ErrProbe)

	// dpkg is missing, rpm answers
	software, err := p.InstalledSoftware(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kernel", "glibc"}, software)

	monitors, err := p.Monitors(ctx)
	require.NoError(t, err)
	assert.Empty(t, monitors)
}

func TestWindowsProbe(t *testing.T) {
	ps := "powershell -NoProfile -NonInteractive -Command ConvertTo-Json -Compress -Depth 3 -InputObject @("
	runner := &fakeRunner{
		outputs: map[string]string{
			ps + psQuerySerial:   `[{"SerialNumber":" 5CG1234XYZ "}]`,
			ps + psQueryModel:    `[{"Manufacturer":"HP","Model":"EliteBook 840 G8"}]`,
			ps + psQueryMemory:   `[{"BankLabel":"BANK 0"},{"BankLabel":"BANK 2"}]`,
			ps + psQueryDisks:    `[{"Model":"SAMSUNG MZVLB512","Status":"OK"},{"Model":"USB Disk","Status":""}]`,
			ps + psQueryVideo:    `[{"Name":"Intel(R) Iris(R) Xe Graphics"}]`,
			ps + psQueryHotfixes: `[{"HotFixID":"KB5031356"},{"HotFixID":"KB5032189"},{"HotFixID":"KB5033375"}]`,
			ps + psQuerySoftware: `[{"DisplayName":"7-Zip 23.01"},{"DisplayName":"Mozilla Firefox"}]`,
			ps + psQueryMonitors: `[{"ManufacturerName":[68,69,76,0],"UserFriendlyName":[80,50,52,49,57,72,0],"SerialNumberID":[]}]`,
		},
	}

	p := NewWindows(runner)
	ctx := context.Background()

	assert.Equal(t, PlatformWindows, p.Platform())

	serial, err := p.SerialNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5CG1234XYZ", serial)

	dm, err := p.DeviceModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "HP EliteBook 840 G8", dm)

	slots, err := p.RAMSlots(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, slots)

	health, err := p.StorageHealth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SAMSUNG MZVLB512: OK; USB Disk: unknown", health)

	gpus, err := p.GPUs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Intel(R) Iris(R) Xe Graphics"}, gpus)

	updates, err := p.InstalledUpdates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, updates)

	software, err := p.InstalledSoftware(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"7-Zip 23.01", "Mozilla Firefox"}, software)

	monitors, err := p.Monitors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Monitor{{Manufacturer: "DEL", Model: "P2419H"}}, monitors)
}

func TestWindowsProbeCommandFailure(t *testing.T) {
	p := NewWindows(&fakeRunner{})

	_, err := p.SerialNumber(context.Background())
	assert.ErrorIs(t, err, ErrProbe)

	_, err = p.InstalledUpdates(context.Background())
	assert.ErrorIs(t, err, ErrProbe)
}

func TestOtherProbe(t *testing.T) {
	p := &Other{}

	_, err := p.SerialNumber(context.Background())
	assert.ErrorIs(t, err, ErrNotApplicable)

	_, _, err = p.Usage(context.Background(), "/")
	assert.ErrorIs(t, err, ErrNotApplicable)
}
