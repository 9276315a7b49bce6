package compute

import (
	"fmt"
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
)

// DeviceClass is the accelerator class used by the device preference policy.
type DeviceClass int

const (
	DeviceClassUnknown DeviceClass = iota
	DeviceClassCPU
	DeviceClassIntegrated
	DeviceClassDiscrete
)

// String returns a short human readable class name for logs.
func (c DeviceClass) String() string {
	switch c {
	case DeviceClassDiscrete:
		return "discrete GPU"
	case DeviceClassIntegrated:
		return "integrated GPU"
	case DeviceClassCPU:
		return "CPU"
	default:
		return "unknown"
	}
}

// DeviceInfo describes the device a Context selected.
type DeviceInfo struct {
	Name    string
	Class   DeviceClass
	Backend string
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s (%s, %s)", d.Name, d.Class, d.Backend)
}

// rankDeviceClass orders device classes for selection. Higher is preferred: the fastest
// accelerator class first, then general purpose processors, then adapters that report no class.
func rankDeviceClass(c DeviceClass) int {
	switch c {
	case DeviceClassDiscrete:
		return 3
	case DeviceClassIntegrated:
		return 2
	case DeviceClassCPU:
		return 1
	default:
		return 0
	}
}

// pickDevice returns the index of the preferred device, or -1 for an empty list. Ties keep
// enumeration order.
func pickDevice(infos []DeviceInfo) int {
	if len(infos) == 0 {
		return -1
	}
	order := make([]int, len(infos))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rankDeviceClass(infos[order[a]].Class) > rankDeviceClass(infos[order[b]].Class)
	})
	return order[0]
}

func classFromAdapterType(t wgpu.AdapterType) DeviceClass {
	switch t {
	case wgpu.AdapterTypeDiscreteGPU:
		return DeviceClassDiscrete
	case wgpu.AdapterTypeIntegratedGPU:
		return DeviceClassIntegrated
	case wgpu.AdapterTypeCPU:
		return DeviceClassCPU
	default:
		return DeviceClassUnknown
	}
}

func backendName(t wgpu.BackendType) string {
	switch t {
	case wgpu.BackendTypeVulkan:
		return "Vulkan"
	case wgpu.BackendTypeMetal:
		return "Metal"
	case wgpu.BackendTypeD3D12:
		return "D3D12"
	case wgpu.BackendTypeOpenGL:
		return "OpenGL"
	default:
		return "other"
	}
}

func adapterDeviceInfo(a *wgpu.Adapter) DeviceInfo {
	info := a.GetInfo()
	name := info.Name
	if name == "" {
		name = "adapter"
	}
	return DeviceInfo{
		Name:    name,
		Class:   classFromAdapterType(info.AdapterType),
		Backend: backendName(info.BackendType),
	}
}
