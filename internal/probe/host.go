package probe

import (
	"context"
	"net"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// hostProbe reads the attributes gopsutil exposes on every supported platform.
type hostProbe struct{}

func (hostProbe) OSName(ctx context.Context) (string, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", errProbe("os", err)
	}

	name := strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
	if name == "" {
		name = strings.TrimSpace(info.OS + " " + info.KernelVersion)
	}

	if name == "" {
		return "", errProbe("os", nil)
	}

	return name, nil
}

func (hostProbe) Architecture(ctx context.Context) (string, error) {
	arch, err := host.KernelArch()
	if err != nil || arch == "" {
		return "", errProbe("architecture", err)
	}

	return arch, nil
}

func (hostProbe) CPUModel(ctx context.Context) (string, error) {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil || len(infos) == 0 {
		return "", errProbe("cpu model", err)
	}

	return strings.TrimSpace(infos[0].ModelName), nil
}

func (hostProbe) CPUCores(ctx context.Context, logical bool) (int, error) {
	n, err := cpu.CountsWithContext(ctx, logical)
	if err != nil || n <= 0 {
		return 0, errProbe("cpu cores", err)
	}

	return n, nil
}

func (hostProbe) RAMTotalBytes(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, errProbe("ram", err)
	}

	return vm.Total, nil
}

func (hostProbe) Partitions(ctx context.Context) ([]Partition, error) {
	stats, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, errProbe("partitions", err)
	}

	partitions := make([]Partition, 0, len(stats))
	for _, s := range stats {
		partitions = append(partitions, Partition{
			Device:     s.Device,
			Mountpoint: s.Mountpoint,
			Fstype:     s.Fstype,
			Opts:       s.Opts,
		})
	}

	return partitions, nil
}

func (hostProbe) Usage(ctx context.Context, mountpoint string) (total, used uint64, err error) {
	u, err := disk.UsageWithContext(ctx, mountpoint)
	if err != nil {
		return 0, 0, errProbe("usage "+mountpoint, err)
	}

	return u.Total, u.Used, nil
}

func (hostProbe) MACAddress(ctx context.Context) (string, error) {
	iface, err := primaryInterface(ctx)
	if err != nil {
		return "", err
	}

	return iface.HardwareAddr, nil
}

func (hostProbe) IPAddress(ctx context.Context) (string, error) {
	iface, err := primaryInterface(ctx)
	if err != nil {
		return "", err
	}

	return ipv4Addr(iface.Addrs), nil
}

// primaryInterface returns the first interface which is up, is not a
// loopback and carries a hardware and an IPv4 address.
func primaryInterface(ctx context.Context) (psnet.InterfaceStat, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return psnet.InterfaceStat{}, errProbe("interfaces", err)
	}

	for _, iface := range ifaces {
		if !hasFlag(iface.Flags, "up") || hasFlag(iface.Flags, "loopback") {
			continue
		}

		if iface.HardwareAddr == "" || ipv4Addr(iface.Addrs) == "" {
			continue
		}

		return iface, nil
	}

	return psnet.InterfaceStat{}, errProbe("interfaces", nil)
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}

	return false
}

func ipv4Addr(addrs psnet.InterfaceAddrList) string {
	for _, a := range addrs {
		ip, _, err := net.ParseCIDR(a.Addr)
		if err != nil {
			ip = net.ParseIP(a.Addr)
		}

		if ip != nil && ip.To4() != nil && !ip.IsLoopback() {
			return ip.String()
		}
	}

	return ""
}
